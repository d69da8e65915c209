package main

import (
	"fmt"
	"io"
)

// cliProgress prints one "→ stage... done" line per pipeline stage.
type cliProgress struct {
	w    io.Writer
	open bool
}

func (p *cliProgress) Start(stage string) {
	if p.open {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "→ %s... ", stage)
	p.open = true
}

func (p *cliProgress) Done(detail string) {
	if detail != "" {
		fmt.Fprintf(p.w, "done (%s)\n", detail)
	} else {
		fmt.Fprintln(p.w, "done")
	}
	p.open = false
}

func (p *cliProgress) Fail() {
	fmt.Fprintln(p.w, "failed")
	p.open = false
}
