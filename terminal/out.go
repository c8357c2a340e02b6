package terminal

import (
	"fmt"
	"io"
)

type transcriptWriter struct {
	w io.Writer
}

func (t *transcriptWriter) Echo(s string) {
	t.w.Write([]byte(s))
}

func (t *transcriptWriter) Echof(format string, args ...interface{}) {
	fmt.Fprintf(t.w, format, args...)
}
