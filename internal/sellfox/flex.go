package sellfox

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Float decodes numbers, quoted numbers, percentages and thousands
// separators. Anything missing or garbled decodes as 0.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	*f = Float(parseLoose(b))
	return nil
}

// Percent is a ratio. Values written with a trailing "%" are divided by 100.
type Percent float64

func (p *Percent) UnmarshalJSON(b []byte) error {
	v := parseLoose(b)
	if bytes.Contains(b, []byte("%")) {
		v /= 100
	}
	*p = Percent(v)
	return nil
}

// Int is Float rounded to the nearest integer.
type Int int64

func (i *Int) UnmarshalJSON(b []byte) error {
	*i = Int(math.Round(parseLoose(b)))
	return nil
}

func parseLoose(b []byte) float64 {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0
	}
	s := string(b)
	if s[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0
		}
	}
	s = strings.TrimSpace(strings.NewReplacer(",", "", "%", "").Replace(s))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// First decodes either a string or a list of strings, keeping the first
// non-empty element of a list.
type First string

func (f *First) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			*f = ""
			return nil
		}
		*f = ""
		for _, item := range items {
			var s First
			if err := s.UnmarshalJSON(item); err == nil && s != "" {
				*f = s
				break
			}
		}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = ""
			return nil
		}
		*f = First(strings.TrimSpace(s))
	default:
		// bare numbers are used for some ids
		*f = First(string(b))
	}
	return nil
}
