package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// NetworkMessage is shown when no response was received.
const NetworkMessage = "Network error — please check your connection."

// DefaultFallback is used when neither the server nor the caller supplies a message.
const DefaultFallback = "Something went wrong."

var (
	// ErrUnauthorized matches any *Error carrying HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork matches any *Error for which no response was received.
	ErrNetwork = errors.New("network error")
	// ErrPinNotSet matches a business error telling the user to create a
	// transaction PIN first.
	ErrPinNotSet = errors.New("transaction pin not set")
	// ErrInsufficientFunds matches a rejected payment or withdrawal for lack of balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Error is a failed API call. Status is 0 when no response was received.
type Error struct {
	Method    string
	Path      string
	Status    int
	Message   string
	ErrorText string
	Errors    map[string][]string
	Err       error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if msg := e.serverMessage(); msg != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers use errors.Is with the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNetwork:
		return e.Status == 0
	case ErrPinNotSet:
		return isPinNotSet(e.Message) || isPinNotSet(e.ErrorText)
	case ErrInsufficientFunds:
		return strings.Contains(strings.ToLower(e.Message+" "+e.ErrorText), "insufficient")
	}
	return false
}

// serverMessage applies the message, error, field-errors precedence.
func (e *Error) serverMessage() string {
	if m := strings.TrimSpace(e.Message); m != "" {
		return m
	}
	if m := strings.TrimSpace(e.ErrorText); m != "" {
		return m
	}
	return e.fieldMessages()
}

func (e *Error) fieldMessages() string {
	if len(e.Errors) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, e.Errors[k]...)
	}
	return strings.Join(out, "\n")
}

// FieldError returns the first validation message for field.
func (e *Error) FieldError(field string) string {
	if msgs := e.Errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func isPinNotSet(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "pin not set") || strings.Contains(m, "set your transaction pin") || strings.Contains(m, "pin has not been set")
}

func parseError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status}
	var raw struct {
		Message json.RawMessage            `json:"message"`
		Error   json.RawMessage            `json:"error"`
		Errors  map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return e
	}
	e.Message = asText(raw.Message)
	e.ErrorText = asText(raw.Error)
	if len(raw.Errors) > 0 {
		e.Errors = make(map[string][]string, len(raw.Errors))
		for field, v := range raw.Errors {
			var list []string
			if err := json.Unmarshal(v, &list); err != nil {
				if s := asText(v); s != "" {
					list = []string{s}
				}
			}
			if len(list) > 0 {
				e.Errors[field] = list
			}
		}
	}
	return e
}

// asText accepts a JSON string and ignores anything else.
func asText(v json.RawMessage) string {
	var s string
	if len(v) == 0 || json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// Message returns the user-facing text for err: the server's message, then
// its error field, then the joined field errors, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if apiErr.Status == 0 {
		return NetworkMessage
	}
	if msg := apiErr.serverMessage(); msg != "" {
		return msg
	}
	return fallback
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNetwork(err error) bool      { return errors.Is(err, ErrNetwork) }
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func IsForbidden(err error) bool    { return Status(err) == http.StatusForbidden }

// IsValidation reports a 422 that carries a field error map.
func IsValidation(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity && len(apiErr.Errors) > 0
}
