package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukerupert/eventbell/internal/model"
)

// record is one event as served by the events API. Older records carry a
// boolean status and numeric ids; newer ones an enum status and string ids.
type record struct {
	ID       json.RawMessage `json:"id"`
	Title    string          `json:"title"`
	Date     string          `json:"date"`
	Time     string          `json:"time"`
	Location string          `json:"location"`
	Status   json.RawMessage `json:"status"`
}

// Normalize decodes a JSON array of event records into canonical events.
// Records whose id cannot be read are kept with an empty id; the reminder
// engine skips them.
func Normalize(data []byte) ([]model.Event, error) {
	var raw []record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]model.Event, 0, len(raw))
	for _, r := range raw {
		events = append(events, model.Event{
			ID:       normalizeID(r.ID),
			Title:    strings.TrimSpace(r.Title),
			Date:     r.Date,
			Time:     r.Time,
			Location: strings.TrimSpace(r.Location),
			Status:   normalizeStatus(r.Status),
		})
	}
	return events, nil
}

func normalizeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func normalizeStatus(raw json.RawMessage) model.Status {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Status{}
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return model.FlagStatus(b)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return model.EnumStatus(s)
	}
	return model.Status{}
}
