package core

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/fixed"
	"github.com/sarchlab/tensorbench/tensor"
)

// PrintState renders the register file of a unit and the first words of
// every tensor window.
func PrintState(w io.Writer, u *Unit, words int) {
	s := &u.state
	l := u.desc.Layout

	regTable := table.NewWriter()
	regTable.SetOutputMirror(w)
	regTable.SetTitle(fmt.Sprintf("Registers of %s", u.Name()))
	regTable.AppendHeader(table.Row{"Offset", "Register", "Value"})
	regTable.AppendRows([]table.Row{
		{fmt.Sprintf("0x%02X", l.Ctrl), "CTRL", fmt.Sprintf("0x%08X", s.Ctrl)},
		{fmt.Sprintf("0x%02X", l.Status), "STATUS", accel.Status(s.Status).State()},
		{fmt.Sprintf("0x%02X", l.Dim), "DIM", s.Dim},
		{fmt.Sprintf("0x%02X", l.BaseIndex), "BASE_INDEX", s.BaseIndex},
		{fmt.Sprintf("0x%02X", l.OutIndex), "OUT_INDEX", s.OutIndex},
		{fmt.Sprintf("0x%02X", l.WordIndex), "WORD_INDEX", s.WordIndex},
	})
	regTable.Render()

	if words > l.WindowWords() {
		words = l.WindowWords()
	}

	winTable := table.NewWriter()
	winTable.SetOutputMirror(w)
	winTable.SetTitle("Tensor Windows")

	header := table.Row{"Word"}
	for _, win := range []accel.Window{
		accel.WindowA, accel.WindowB, accel.WindowC, accel.WindowR,
	} {
		header = append(header, win.Name())
	}
	winTable.AppendHeader(header)

	for i := 0; i < words; i++ {
		row := table.Row{i}
		for win := range s.Windows {
			row = append(row, formatWord(s.Windows[win][i]))
		}
		winTable.AppendRow(row)
	}
	winTable.Render()
}

func formatWord(word uint32) string {
	str := ""
	for j := 0; j < tensor.LanesPerWord; j++ {
		if j > 0 {
			str += " "
		}
		str += fixed.Format(fixed.Q07(tensor.Lane(word, j)))
	}

	return str
}

// LogState dumps the register file at debug level.
func LogState(u *Unit) {
	s := &u.state
	slog.Debug("StateCheckpoint",
		"Device", u.Name(),
		"Ctrl", s.Ctrl,
		"Status", s.Status,
		"Dim", s.Dim,
		"BaseIndex", s.BaseIndex,
		"OutIndex", s.OutIndex,
		"WordIndex", s.WordIndex,
		"Completed", s.Completed,
	)
}
