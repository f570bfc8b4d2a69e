package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/tensorbench/fixed"
)

// formatCmd prints raw Q0.7 codes as decimals.
func formatCmd(args []string) int {
	fs := flag.NewFlagSet("format", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	for _, arg := range fs.Args() {
		v, err := strconv.ParseInt(arg, 0, 16)
		if err != nil || v < int64(fixed.Min) || v > int64(fixed.Max) {
			fmt.Fprintf(os.Stderr, "not a Q0.7 code: %q\n", arg)
			return 2
		}

		fmt.Printf("%4d %s\n", v, fixed.Format(fixed.Q07(v)))
	}

	return 0
}

// quantizeCmd reads real values separated by commas or white space and
// writes them as a Q0.7 array.
func quantizeCmd(args []string) int {
	fs := flag.NewFlagSet("quantize", flag.ContinueOnError)
	name := fs.String("name", "weights", "Array name")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	in := io.Reader(os.Stdin)
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer f.Close()
		in = f
	}

	values, err := readFloats(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := fixed.WriteArray(os.Stdout, *name, fixed.QuantizeSlice(values)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return 0
}

func readFloats(r io.Reader) ([]float64, error) {
	var values []float64

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.FieldsFunc(sc.Text(), func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("bad value %q: %w", f, err)
			}
			values = append(values, v)
		}
	}

	return values, sc.Err()
}
