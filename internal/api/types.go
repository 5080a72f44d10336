package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID accepts both JSON numbers and strings; the backend mixes integer keys
// and UUIDs.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Kobo is an integer amount of kobo (1/100 naira). It also decodes numeric
// strings such as "150000" or "150000.00".
type Kobo int64

func (k *Kobo) UnmarshalJSON(b []byte) error {
	v, err := parseNumeric(b)
	if err != nil {
		return fmt.Errorf("kobo amount: %w", err)
	}
	*k = Kobo(math.Round(v))
	return nil
}

// parseNumeric reads a JSON number, a numeric string or null (as 0).
func parseNumeric(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return f, nil
}

// Amount is a decimal amount in naira that may arrive as a number or a string.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	v, err := parseNumeric(b)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(v)
	return nil
}

// Number is a float that may arrive as a JSON number or a numeric string, as
// decimal columns often do.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	v, err := parseNumeric(b)
	if err != nil {
		return fmt.Errorf("number: %w", err)
	}
	*n = Number(v)
	return nil
}

// Naira returns the amount in naira.
func (k Kobo) Naira() float64 { return float64(k) / 100 }

// Flag is a JSON truthiness value: true, non-zero numbers and non-empty
// strings are set. The backend reports a configured PIN as a hash string.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case float64:
		*f = Flag(t != 0)
	case string:
		*f = Flag(t != "" && t != "0" && !strings.EqualFold(t, "false"))
	default:
		*f = false
	}
	return nil
}

// User is the authenticated profile returned by /me and /login.
type User struct {
	ID              ID      `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	BalanceKobo     Kobo    `json:"balance_kobo"`
	TransactionPin  Flag    `json:"transaction_pin"`
	IsAdmin         Flag    `json:"is_admin"`
	Role            string  `json:"role,omitempty"`
	EmailVerifiedAt *string `json:"email_verified_at,omitempty"`
	BankName        string  `json:"bank_name,omitempty"`
	AccountNumber   string  `json:"account_number,omitempty"`
	AccountName     string  `json:"account_name,omitempty"`
}

// Admin reports whether the user may use the admin listing endpoints.
func (u *User) Admin() bool {
	if u == nil {
		return false
	}
	return bool(u.IsAdmin) || strings.EqualFold(u.Role, "admin")
}

// HasPin reports whether a transaction PIN is configured.
func (u *User) HasPin() bool { return u != nil && bool(u.TransactionPin) }

// DecodeUser accepts either {"user": {...}} or a bare user object.
func DecodeUser(raw json.RawMessage) (*User, error) {
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	body := raw
	if len(wrapped.User) > 0 && !bytes.Equal(bytes.TrimSpace(wrapped.User), []byte("null")) {
		body = wrapped.User
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// DecodeList extracts a list from the first envelope key present in raw. A
// bare JSON array is accepted as well. Keys may be dotted ("data.data").
func DecodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return out, nil
	}
	for _, key := range keys {
		v, ok := lookup(raw, key)
		if !ok {
			continue
		}
		var out []T
		if err := json.Unmarshal(v, &out); err != nil {
			// a paginated object under the key; try its data field
			if inner, ok := lookup(v, "data"); ok {
				if err2 := json.Unmarshal(inner, &out); err2 == nil {
					return out, nil
				}
			}
			return nil, fmt.Errorf("decode list %q: %w", key, err)
		}
		return out, nil
	}
	return nil, nil
}

// DecodeObject unmarshals the first envelope key present in raw into out, or
// raw itself when no key matches.
func DecodeObject(raw json.RawMessage, out any, keys ...string) error {
	body := raw
	for _, key := range keys {
		if v, ok := lookup(raw, key); ok {
			body = v
			break
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	return nil
}

// lookup walks a dotted key path through JSON objects.
func lookup(raw json.RawMessage, path string) (json.RawMessage, bool) {
	cur := raw
	for _, part := range strings.Split(path, ".") {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(cur, &m); err != nil {
			return nil, false
		}
		v, ok := m[part]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Lookup returns the string at a dotted key path, if present.
func Lookup(raw json.RawMessage, path string) (string, bool) {
	v, ok := lookup(raw, path)
	if !ok {
		return "", false
	}
	s := asText(v)
	return s, s != ""
}
