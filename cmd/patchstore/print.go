package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tailored-agentic-units/patchstore/patch"
	"github.com/tailored-agentic-units/patchstore/store"
)

type printer struct {
	out     io.Writer
	header  *color.Color
	direct  *color.Color
	section *color.Color
}

func newPrinter(out io.Writer, colored bool) *printer {
	p := &printer{
		out:     out,
		header:  color.New(color.FgCyan, color.Bold),
		direct:  color.New(color.FgYellow),
		section: color.New(color.FgGreen, color.Bold),
	}
	if colored {
		p.header.EnableColor()
		p.direct.EnableColor()
		p.section.EnableColor()
	} else {
		p.header.DisableColor()
		p.direct.DisableColor()
		p.section.DisableColor()
	}
	return p
}

// change prints one change record as a storage listener.
func (p *printer) change(ctx context.Context, state patch.Map, record store.ChangeRecord) error {
	label := p.header.Sprint(record.Action)
	if record.Action == "" {
		label = p.direct.Sprint("(update)")
	}

	_, err := fmt.Fprintf(p.out, "#%d %s %s\n", record.Generation, label, encodeChanges(record.Changes))
	return err
}

func (p *printer) summary(state patch.Map, diff patch.Patch, records int) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	fmt.Fprintf(p.out, "\n%s (%d records kept)\n%s\n", p.section.Sprint("state"), records, data)
	fmt.Fprintf(p.out, "\n%s\n%s\n", p.section.Sprint("diff"), encodeChanges(diff))
	return nil
}

// encodeChanges renders a patch as a JSON merge patch, falling back to Go
// syntax when the patch holds values JSON cannot express.
func encodeChanges(changes patch.Patch) string {
	data, err := patch.EncodeMergePatch(changes)
	if err != nil {
		return fmt.Sprintf("%v", changes)
	}
	return string(data)
}
