// Package output renders what growthctl shows on a terminal: notices through
// a Printer, listings through Table and failures through FormatError.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// ColorMode selects when colors are used.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

var colorModes = map[string]ColorMode{
	"":       ColorAuto,
	"auto":   ColorAuto,
	"always": ColorAlways,
	"never":  ColorNever,
}

// ParseColorMode parses the --color flag.
func ParseColorMode(s string) (ColorMode, error) {
	if m, ok := colorModes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return ColorAuto, fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
}

// ResolveColors applies mode. In auto mode NO_COLOR and TERM=dumb turn colors
// off, otherwise the configured default decides.
func ResolveColors(mode ColorMode, configColors bool) bool {
	if mode != ColorAuto {
		return mode == ColorAlways
	}
	return configColors && !plainTerminal()
}

func plainTerminal() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return true
	}
	return os.Getenv("TERM") == "dumb"
}

// PrinterOptions configures a Printer. Nil writers default to stdout and stderr.
type PrinterOptions struct {
	ColorMode    ColorMode
	ConfigColors bool
	Quiet        bool
	Out          io.Writer
	Err          io.Writer
}

// Printer writes user-facing messages. It satisfies session.Notifier.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	quiet     bool
}

func NewPrinter(opts PrinterOptions) *Printer {
	p := &Printer{
		out:       opts.Out,
		err:       opts.Err,
		useColors: ResolveColors(opts.ColorMode, opts.ConfigColors),
		quiet:     opts.Quiet,
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.err == nil {
		p.err = os.Stderr
	}
	return p
}

func (p *Printer) IsQuiet() bool { return p.quiet }

// Out is the writer for regular output.
func (p *Printer) Out() io.Writer { return p.out }

// paint returns a color that is on or off by the printer's setting rather
// than by the global tty detection in fatih/color.
func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.useColors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

type tone struct {
	attr   color.Attribute
	mark   string // prefix when colored
	tag    string // prefix when plain
	stderr bool
	loud   bool // printed in quiet mode too
}

var (
	toneInfo    = tone{attr: color.FgCyan}
	toneSuccess = tone{attr: color.FgGreen, mark: "✓ ", tag: "[OK] "}
	toneWarning = tone{attr: color.FgYellow, mark: "⚠ ", tag: "[WARN] ", stderr: true}
	toneError   = tone{attr: color.FgRed, mark: "✗ ", tag: "[ERROR] ", stderr: true, loud: true}
)

func (p *Printer) notice(t tone, format string, args []any) {
	if p.quiet && !t.loud {
		return
	}
	w := p.out
	if t.stderr {
		w = p.err
	}
	prefix := t.tag
	if p.useColors {
		prefix = t.mark
	}
	p.paint(t.attr).Fprintln(w, prefix+fmt.Sprintf(format, args...))
}

func (p *Printer) Info(format string, args ...any)    { p.notice(toneInfo, format, args) }
func (p *Printer) Success(format string, args ...any) { p.notice(toneSuccess, format, args) }
func (p *Printer) Warning(format string, args ...any) { p.notice(toneWarning, format, args) }

// Error is printed even in quiet mode.
func (p *Printer) Error(format string, args ...any) { p.notice(toneError, format, args) }

func (p *Printer) Print(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints a blank line, then title underlined to its width.
func (p *Printer) Header(title string) {
	if p.quiet {
		return
	}
	rule := "-"
	if p.useColors {
		rule = "─"
	}
	fmt.Fprintln(p.out)
	p.paint(color.FgWhite, color.Bold).Fprintln(p.out, title)
	p.paint(color.FgWhite).Fprintln(p.out, strings.Repeat(rule, utf8.RuneCountInString(title)))
}

// Field prints an aligned label/value line.
func (p *Printer) Field(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "  %-16s %s\n", label+":", value)
}

var signColors = map[string]color.Attribute{
	"+": color.FgGreen,
	"-": color.FgRed,
	"−": color.FgRed,
}

// Signed colors an amount by its direction: green for money in, red for money out.
func (p *Printer) Signed(sign, text string) string {
	attr, ok := signColors[sign]
	if !ok {
		return sign + text
	}
	return p.paint(attr).Sprint(sign + text)
}

var badgeColors = map[string]color.Attribute{
	"unread":    color.FgGreen,
	"available": color.FgGreen,
	"enabled":   color.FgGreen,
	"active":    color.FgGreen,
	"disabled":  color.FgRed,
	"sold out":  color.FgRed,
	"failed":    color.FgRed,
	"pending":   color.FgYellow,
}

// Badge renders a land or notification status: a dot when colored, the
// bracketed word otherwise.
func (p *Printer) Badge(status string) string {
	if !p.useColors {
		return "[" + status + "]"
	}
	if attr, ok := badgeColors[status]; ok {
		return p.paint(attr).Sprint("●")
	}
	return p.paint(color.FgWhite).Sprint("○")
}

func (p *Printer) Bold(text string) string { return p.paint(color.Bold).Sprint(text) }

func (p *Printer) Dim(text string) string { return p.paint(color.Faint).Sprint(text) }
