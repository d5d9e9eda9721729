package pagination

import (
	"fmt"
	"strconv"
)

type markerKind uint8

const (
	markerNone markerKind = iota
	markerPage
	markerBefore
	markerAfter
)

// Marker is the position sent as the "page" parameter of a listing request.
// The zero value means "start from the beginning".
type Marker struct {
	kind  markerKind
	value uint64
}

// Page starts at the given page number; the offset depends on the page size.
func Page(n uint64) Marker {
	return Marker{kind: markerPage, value: n}
}

// Before returns records with ids strictly lower than id.
func Before(id uint64) Marker {
	return Marker{kind: markerBefore, value: id}
}

// After returns records with ids strictly higher than id.
func After(id uint64) Marker {
	return Marker{kind: markerAfter, value: id}
}

// IsZero reports whether the marker is unset.
func (m Marker) IsZero() bool {
	return m.kind == markerNone
}

// String renders the marker in the API's format: "b<id>", "a<id>" or "<n>".
func (m Marker) String() string {
	switch m.kind {
	case markerPage:
		return strconv.FormatUint(m.value, 10)
	case markerBefore:
		return "b" + strconv.FormatUint(m.value, 10)
	case markerAfter:
		return "a" + strconv.FormatUint(m.value, 10)
	default:
		return ""
	}
}

// ParseMarker parses the format produced by String. The empty string parses
// to the zero Marker.
func ParseMarker(s string) (Marker, error) {
	if s == "" {
		return Marker{}, nil
	}

	kind := markerPage
	digits := s
	switch s[0] {
	case 'b':
		kind, digits = markerBefore, s[1:]
	case 'a':
		kind, digits = markerAfter, s[1:]
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Marker{}, fmt.Errorf("parse marker %q: %w", s, err)
	}
	return Marker{kind: kind, value: n}, nil
}
