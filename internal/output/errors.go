package output

import (
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/session"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitUsageError  = 2
	ExitAuthError   = 3
	ExitConfigError = 4
	ExitNetwork     = 5
)

// CLIError is an error with user-facing context.
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
	Err        error
}

func (e *CLIError) Error() string { return e.Summary }

func (e *CLIError) Unwrap() error { return e.Err }

// FromError maps err to a CLIError. The summary is the server's message where
// there is one.
func FromError(err error) *CLIError {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	e := &CLIError{Summary: api.Message(err, err.Error()), ExitCode: ExitGeneral, Err: err}
	switch {
	case errors.Is(err, session.ErrUnauthenticated), errors.Is(err, session.ErrSessionExpired), api.IsUnauthorized(err):
		e.ExitCode = ExitAuthError
		e.Suggestion = "Run 'growthctl login' to sign in"
	case errors.Is(err, session.ErrForbidden), api.IsForbidden(err):
		e.ExitCode = ExitAuthError
		e.Suggestion = "This command needs an admin account"
	case errors.Is(err, api.ErrPinNotSet):
		e.Suggestion = "Run 'growthctl pin set' to create your transaction PIN"
	case api.IsNetwork(err):
		e.ExitCode = ExitNetwork
		e.Detail = err.Error()
		e.Suggestion = "Check api_base_url and your connection"
	case api.IsValidation(err):
		e.ExitCode = ExitUsageError
	}
	if e.Summary != err.Error() && e.Detail == "" {
		e.Detail = err.Error()
	}
	return e
}

// FormatError prints e to stderr: the summary, then the cause and a
// suggestion when known.
func (p *Printer) FormatError(e *CLIError) {
	if p.useColors {
		p.paint(color.FgRed, color.Bold).Fprintf(p.err, "Error: %s\n", e.Summary)
	} else {
		fmt.Fprintf(p.err, "[ERROR] %s\n", e.Summary)
	}
	if e.Detail != "" {
		fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
	}
	if e.Suggestion != "" {
		p.paint(color.FgCyan).Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
	}
}
