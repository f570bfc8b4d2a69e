// Command tensorverify checks tensor accelerators against the software
// reference, either simulated or through /dev/mem.
//
//	tensorverify run [-target sim|mmio] [-config run.yaml] [-dim N] [-ops add,sub] [-pattern modulo]
//	tensorverify format <q> [q...]
//	tensorverify quantize [-name weights] [file]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/tensorbench/accel"
	"github.com/tebeka/atexit"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tensorverify <run|format|quantize> [flags]")
}

// setupLog sends the default logger to a JSON file. The file is closed by
// the exit hooks.
func setupLog(path string) {
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open log file:", err)
		atexit.Exit(2)
	}
	atexit.Register(func() { f.Close() })

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: accel.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		atexit.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = runCmd(os.Args[2:])
	case "format":
		code = formatCmd(os.Args[2:])
	case "quantize":
		code = quantizeCmd(os.Args[2:])
	default:
		usage()
		code = 2
	}

	atexit.Exit(code)
}
