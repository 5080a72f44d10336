package notifications

import (
	"encoding/json"

	"github.com/alanjade/growthctl/internal/api"
)

// Notification mirrors a database notification row. Payload fields live under data.
type Notification struct {
	ID        api.ID  `json:"id"`
	Type      string  `json:"type"`
	Data      Data    `json:"data"`
	ReadAt    *string `json:"read_at"`
	CreatedAt string  `json:"created_at"`
}

// Data is the notification payload. Unknown keys are kept in Extra.
type Data struct {
	Title      string                     `json:"title,omitempty"`
	Message    string                     `json:"message,omitempty"`
	Units      int                        `json:"units,omitempty"`
	AmountKobo api.Kobo                   `json:"amount_kobo,omitempty"`
	LandID     api.ID                     `json:"land_id,omitempty"`
	Extra      map[string]json.RawMessage `json:"-"`
}

func (d *Data) UnmarshalJSON(b []byte) error {
	type plain Data
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range []string{"title", "message", "units", "amount_kobo", "land_id"} {
		delete(all, k)
	}
	*d = Data(p)
	if len(all) > 0 {
		d.Extra = all
	}
	return nil
}

// Read reports whether the notification has been read.
func (n Notification) Read() bool { return n.ReadAt != nil && *n.ReadAt != "" }

// Text is the line shown to the user.
func (n Notification) Text() string {
	if n.Data.Message != "" {
		return n.Data.Message
	}
	return "New activity"
}

// Unread filters list down to unread entries.
func Unread(list []Notification) []Notification {
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		if !n.Read() {
			out = append(out, n)
		}
	}
	return out
}
