package output

import (
	"fmt"
	"strings"
)

// CommandHints maps a command to the ones users usually run next.
var CommandHints = map[string][]string{
	"login":            {"dashboard", "notifications unread"},
	"register":         {"verify-email"},
	"verify-email":     {"login"},
	"lands buy":        {"portfolio", "wallet balance"},
	"lands sell":       {"portfolio", "wallet history"},
	"wallet deposit":   {"wallet balance"},
	"wallet withdraw":  {"wallet history"},
	"password forgot":  {"password verify"},
	"password verify":  {"password reset"},
	"pin forgot":       {"pin verify"},
	"pin verify":       {"pin reset"},
	"bank resolve":     {"bank update"},
	"admin lands list": {"admin lands update", "admin lands price"},
}

// PrintHints prints a "See also" line for command.
func (p *Printer) PrintHints(command string) {
	if p.quiet {
		return
	}
	hints := CommandHints[command]
	if len(hints) == 0 {
		return
	}
	cmds := make([]string, len(hints))
	for i, h := range hints {
		cmds[i] = "growthctl " + h
	}
	fmt.Fprintf(p.out, "\nSee also: %s\n", strings.Join(cmds, ", "))
}

// Navigator returns the session navigator for the CLI: it prints where the
// web app would have gone.
func (p *Printer) Navigator(loginPath string) func(path string) {
	return func(path string) {
		if p.quiet {
			return
		}
		switch path {
		case loginPath:
			p.Info("→ sign in with 'growthctl login'")
		case "/", "":
		default:
			fmt.Fprintln(p.out, p.Dim("→ "+path))
		}
	}
}
