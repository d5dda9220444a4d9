// Package dateutil formats dates for fragment templates. Formats are written
// with Y, M and D runs ("DD/MM/YYYY", "MMMM D, YYYY"), named presets, or
// "auto" for the current date.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateFormat is returned for formats that cannot be compiled.
var ErrInvalidDateFormat = errors.New("invalid date format")

const (
	// MaxFormatLength bounds format strings read from templates and data.
	MaxFormatLength = 50

	// DefaultFormat renders dates when no format is given.
	DefaultFormat = "YYYY-MM-DD"
)

// Presets name common formats. Lookup is case-insensitive.
var Presets = map[string]string{
	"iso":      "YYYY-MM-DD",
	"european": "DD/MM/YYYY",
	"us":       "MM/DD/YYYY",
	"long":     "MMMM D, YYYY",
}

// runs maps a run of one date letter to its Go layout element.
var runs = map[string]string{
	"YYYY": "2006",
	"YY":   "06",
	"MMMM": "January",
	"MMM":  "Jan",
	"MM":   "01",
	"M":    "1",
	"DD":   "02",
	"D":    "2",
}

// timestampLayouts are the string timestamps Format recognises.
var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly}

// Layout is a compiled date format.
type Layout struct {
	goLayout string
}

// Compile turns a format or preset name into a Layout. Text inside square
// brackets is literal; any other character outside a Y, M or D run is
// copied as is. A run with no meaning, such as "YYY", is an error.
func Compile(format string) (Layout, error) {
	if format == "" {
		return Layout{}, fmt.Errorf("%w: empty", ErrInvalidDateFormat)
	}
	if len(format) > MaxFormatLength {
		return Layout{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidDateFormat, MaxFormatLength)
	}
	if preset, ok := Presets[strings.ToLower(format)]; ok {
		format = preset
	}

	var b strings.Builder
	for i := 0; i < len(format); {
		c := format[i]
		switch c {
		case '[':
			end := strings.IndexByte(format[i+1:], ']')
			if end < 0 {
				return Layout{}, fmt.Errorf("%w: unclosed bracket at %d", ErrInvalidDateFormat, i)
			}
			b.WriteString(format[i+1 : i+1+end])
			i += end + 2
		case 'Y', 'M', 'D':
			j := i
			for j < len(format) && format[j] == c {
				j++
			}
			elem, ok := runs[format[i:j]]
			if !ok {
				return Layout{}, fmt.Errorf("%w: %q at %d", ErrInvalidDateFormat, format[i:j], i)
			}
			b.WriteString(elem)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return Layout{goLayout: b.String()}, nil
}

// Format renders t.
func (l Layout) Format(t time.Time) string {
	return t.Format(l.goLayout)
}

// ResolveDate expands "auto" to now in DefaultFormat and "auto:FORMAT" to now
// in FORMAT. Other values are returned unchanged.
func ResolveDate(value string, now time.Time) (string, error) {
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "auto") {
		return value, nil
	}

	format := DefaultFormat
	switch {
	case lower == "auto":
	case strings.HasPrefix(lower, "auto:"):
		format = value[len("auto:"):]
	default:
		return "", fmt.Errorf("%w: %q, use auto or auto:FORMAT", ErrInvalidDateFormat, value)
	}

	l, err := Compile(format)
	if err != nil {
		return "", err
	}
	return l.Format(now), nil
}

// Format renders v for a template, in format when given, else DefaultFormat.
// Times and timestamp strings are formatted, "auto" values resolve against
// now, nil is empty and any other value is printed as is.
func Format(v any, now time.Time, format ...string) (string, error) {
	f := DefaultFormat
	if len(format) > 0 && format[0] != "" {
		f = format[0]
	}
	l, err := Compile(f)
	if err != nil {
		return "", err
	}

	switch d := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return l.Format(d), nil
	case *time.Time:
		if d == nil {
			return "", nil
		}
		return l.Format(*d), nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return l.Format(t), nil
			}
		}
		if strings.EqualFold(d, "auto") {
			return l.Format(now), nil
		}
		return ResolveDate(d, now)
	default:
		return fmt.Sprint(v), nil
	}
}
