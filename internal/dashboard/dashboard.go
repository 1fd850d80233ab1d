package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dashboard is the structured payload an assistant reply may carry next to its prose.
type Dashboard struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary,omitempty"`
	KPIs    []KPI    `json:"kpis"`
	Charts  []Chart  `json:"charts"`
	Sources []Source `json:"sources"`
}

type KPI struct {
	Label  string `json:"label"`
	Value  Figure `json:"value"`
	Change Figure `json:"change,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

type Chart struct {
	Type   string   `json:"type"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

type Source struct {
	Name    string `json:"name"`
	Excerpt string `json:"excerpt,omitempty"`
	Page    int    `json:"page,omitempty"`
}

// Figure holds a KPI value as text. Models emit both 4.2 and "4.2%", so numbers
// and strings are accepted.
type Figure string

func (f *Figure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Figure(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("figure must be a string or number, got %s", data)
	}
	*f = Figure(data)
	return nil
}

var blockPattern = regexp.MustCompile("(?s)```dashboard[ \\t]*\\r?\\n(.*?)```")

// Extract pulls the first fenced dashboard block out of reply. It returns the reply with
// the block removed and the parsed dashboard, or nil when there is no block. A block that
// does not parse is left in the reply and reported as an error.
func Extract(reply string) (string, *Dashboard, error) {
	loc := blockPattern.FindStringSubmatchIndex(reply)
	if loc == nil {
		return strings.TrimSpace(reply), nil, nil
	}

	raw := reply[loc[2]:loc[3]]
	var d Dashboard
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return strings.TrimSpace(reply), nil, fmt.Errorf("parse dashboard block failed: %w", err)
	}

	clean := strings.TrimSpace(reply[:loc[0]] + reply[loc[1]:])
	return clean, &d, nil
}
