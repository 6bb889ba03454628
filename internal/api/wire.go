package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// The API is loose about number and id encodings: ids arrive as strings or
// integers, scores as floats, strings or null. The flex types accept every
// shape seen in the wild and fall back to the zero value instead of failing
// the whole page.

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(strings.Trim(string(b), `"`))
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*f = 0
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		raw = strings.TrimSpace(v)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*n = flexInt(math.Round(float64(f)))
	return nil
}

type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	switch s {
	case "true", "1", "yes":
		*v = true
	default:
		*v = false
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return nil
}

func (t *flexTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// statusOrUnknown keeps a status as sent, lowercased. A missing status
// becomes "unknown". Values the console does not recognise stay as they are
// so that nothing unknown is offered an action.
func statusOrUnknown(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "unknown"
	}
	return s
}

// listEnvelope is the paginated list shape. Some endpoints use "data" or
// "results" instead of "items".
type listEnvelope[W any] struct {
	Items      []W     `json:"items"`
	Data       []W     `json:"data"`
	Results    []W     `json:"results"`
	Total      flexInt `json:"total"`
	TotalPages flexInt `json:"total_pages"`
	Page       flexInt `json:"page"`
	Limit      flexInt `json:"limit"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T
	Total      int
	TotalPages int
	Page       int
	Limit      int
}

// rawPage accepts either an envelope or a bare array.
type rawPage[W any] struct {
	env listEnvelope[W]
}

func (p *rawPage[W]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &p.env.Items)
	}
	return json.Unmarshal(b, &p.env)
}

// decodePage converts a raw page into canonical items, filling in totals the
// server left out. page and limit are the values that were requested.
func decodePage[W, T any](raw rawPage[W], page, limit int, conv func(W) T) Page[T] {
	env := raw.env
	wires := env.Items
	if len(wires) == 0 && len(env.Data) > 0 {
		wires = env.Data
	}
	if len(wires) == 0 && len(env.Results) > 0 {
		wires = env.Results
	}

	items := make([]T, 0, len(wires))
	for _, w := range wires {
		items = append(items, conv(w))
	}

	out := Page[T]{
		Items:      items,
		Total:      int(env.Total),
		TotalPages: int(env.TotalPages),
		Page:       int(env.Page),
		Limit:      int(env.Limit),
	}
	if out.Page <= 0 {
		out.Page = max(page, 1)
	}
	if out.Limit <= 0 {
		out.Limit = limit
	}
	if out.Total <= 0 {
		out.Total = len(items)
	}
	if out.TotalPages <= 0 && out.Total > 0 {
		if out.Limit > 0 {
			out.TotalPages = (out.Total + out.Limit - 1) / out.Limit
		} else {
			out.TotalPages = 1
		}
	}
	return out
}

// pageParams reads page and limit back out of a list query.
func pageParams(q url.Values) (page, limit int) {
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}
