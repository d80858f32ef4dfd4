package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scopes is a list of OAuth scopes. It decodes from either a JSON array or
// the space separated string OAuth servers usually return.
type Scopes []string

func (s *Scopes) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("scope must be a string or list: %w", err)
	}
	*s = strings.Fields(str)
	return nil
}

// Timestamp decodes RFC 3339 times as well as the zone-less ISO 8601 times the
// backend emits for naive UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
