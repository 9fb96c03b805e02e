package reporter

import (
	"io"
	"os"

	"github.com/fatih/color"
)

// palette holds the colors used by text output. Colors are disabled unless
// the writer is a terminal.
type palette struct {
	header   *color.Color
	added    *color.Color
	removed  *color.Color
	errLabel *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		header:   color.New(color.Bold),
		added:    color.New(color.FgGreen),
		removed:  color.New(color.FgRed),
		errLabel: color.New(color.FgYellow),
	}
	enabled := isTTY(w) && os.Getenv("NO_COLOR") == ""
	for _, c := range []*color.Color{p.header, p.added, p.removed, p.errLabel} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// isTTY returns true if the writer is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
