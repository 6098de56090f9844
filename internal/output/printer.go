// Package output renders client results for humans on a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/samvad-hq/hush-client/pkg/apiclient"
)

// Printer writes section headers, results and failures with optional colors.
type Printer struct {
	w       io.Writer
	noColor bool

	section *color.Color
	success *color.Color
	failure *color.Color
	warn    *color.Color
	info    *color.Color
	key     *color.Color
}

// New returns a printer writing to w.
func New(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		w:       w,
		noColor: noColor,
		section: color.New(color.FgMagenta, color.Bold),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		info:    color.New(color.FgBlue),
		key:     color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{p.section, p.success, p.failure, p.warn, p.info, p.key} {
			c.DisableColor()
		}
	}
	return p
}

// ForFile returns a printer for f, disabling colors when f is not a terminal.
func ForFile(f *os.File) *Printer {
	return New(f, color.NoColor || !IsTerminal(f))
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Section prints a banner for a demonstration step.
func (p *Printer) Section(title string) {
	line := strings.Repeat("=", len(title)+8)
	p.section.Fprintf(p.w, "\n%s\n=== %s ===\n%s\n", line, title, line)
}

// Step announces an action about to run.
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.info.Sprint("→"), fmt.Sprintf(format, args...))
}

// Infof prints an informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.info.Sprint("ℹ"), fmt.Sprintf(format, args...))
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.warn.Sprint("⚠"), fmt.Sprintf(format, args...))
}

// Success prints a labelled value.
func (p *Printer) Success(label string, value any) {
	fmt.Fprintf(p.w, "%s %s: %s\n", p.success.Sprint("✓"), label, FormatValue(value))
}

// Failure prints a labelled error.
func (p *Printer) Failure(label string, err error) {
	fmt.Fprintf(p.w, "%s %s: %s\n", p.failure.Sprint("✗"), label, p.failure.Sprint(err))
}

// KeyValue prints an indented key/value pair.
func (p *Printer) KeyValue(key string, value any) {
	fmt.Fprintf(p.w, "  %s: %v\n", p.key.Sprint(key), value)
}

// Response prints the status line, timing and selected headers of resp.
func (p *Printer) Response(label string, resp *apiclient.Response, headers ...string) {
	if resp == nil {
		return
	}
	status := p.success
	if !resp.IsSuccess() {
		status = p.warn
	}
	fmt.Fprintf(p.w, "%s %s: %s (%.2fms, %d attempt(s))\n",
		status.Sprint("●"), label, resp.Status(), resp.ElapsedMS(), resp.Attempts())

	all := resp.Headers()
	keys := headers
	if len(keys) == 0 {
		keys = make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		k = http.CanonicalHeaderKey(k)
		if v, ok := all[k]; ok {
			p.KeyValue(k, v)
		}
	}
	if body := resp.Body(); body != "" {
		fmt.Fprintf(p.w, "  %s\n", FormatValue(body))
	}
}

// FormatValue renders strings verbatim and everything else as indented JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
