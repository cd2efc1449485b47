package types

import (
	"encoding/json"
	"time"
)

// Position is one coordinate of a geometry.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Value is a typed cell value. The set of implementations is closed: one
// type per Kind, all declared in this file.
type Value interface {
	// Kind returns the kind this value belongs to.
	Kind() Kind

	// Raw returns a plain representation (maps, slices, strings, numbers)
	// that Validate accepts and turns back into an equal Value.
	Raw() any

	isValue()
}

// PointValue is a single coordinate.
type PointValue Position

// LineValue is an ordered list of at least two coordinates.
type LineValue []Position

// PolygonValue is a list of closed rings; the first ring is the outer
// boundary.
type PolygonValue [][]Position

// StringValue is free text.
type StringValue string

// NumberValue is a finite float.
type NumberValue float64

// BoolValue is a boolean.
type BoolValue bool

// DateValue is a UTC timestamp.
type DateValue struct {
	Time time.Time
}

// RichTextValue holds a compact JSON document.
type RichTextValue string

// IconValue names a marker icon.
type IconValue string

func (PointValue) Kind() Kind    { return KindPoint }
func (LineValue) Kind() Kind     { return KindLine }
func (PolygonValue) Kind() Kind  { return KindPolygon }
func (StringValue) Kind() Kind   { return KindString }
func (NumberValue) Kind() Kind   { return KindNumber }
func (BoolValue) Kind() Kind     { return KindBool }
func (DateValue) Kind() Kind     { return KindDate }
func (RichTextValue) Kind() Kind { return KindRichText }
func (IconValue) Kind() Kind     { return KindIcon }

func (PointValue) isValue()    {}
func (LineValue) isValue()     {}
func (PolygonValue) isValue()  {}
func (StringValue) isValue()   {}
func (NumberValue) isValue()   {}
func (BoolValue) isValue()     {}
func (DateValue) isValue()     {}
func (RichTextValue) isValue() {}
func (IconValue) isValue()     {}

func (v PointValue) Raw() any {
	return map[string]any{"lat": v.Lat, "lng": v.Lng}
}

// Raw returns GeoJSON-ordered [lng, lat] pairs.
func (v LineValue) Raw() any {
	return rawPositions(v)
}

func (v PolygonValue) Raw() any {
	rings := make([]any, len(v))
	for i, ring := range v {
		rings[i] = rawPositions(ring)
	}
	return rings
}

func (v StringValue) Raw() any   { return string(v) }
func (v NumberValue) Raw() any   { return float64(v) }
func (v BoolValue) Raw() any     { return bool(v) }
func (v DateValue) Raw() any     { return v.Time.UTC().Format(time.RFC3339Nano) }
func (v RichTextValue) Raw() any { return string(v) }
func (v IconValue) Raw() any     { return string(v) }

func (v PointValue) MarshalJSON() ([]byte, error)   { return json.Marshal(v.Raw()) }
func (v LineValue) MarshalJSON() ([]byte, error)    { return json.Marshal(v.Raw()) }
func (v PolygonValue) MarshalJSON() ([]byte, error) { return json.Marshal(v.Raw()) }
func (v DateValue) MarshalJSON() ([]byte, error)    { return json.Marshal(v.Raw()) }

// MarshalJSON emits the document itself rather than a quoted string.
func (v RichTextValue) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

func rawPositions(ps []Position) []any {
	out := make([]any, len(ps))
	for i, p := range ps {
		out[i] = []any{p.Lng, p.Lat}
	}
	return out
}
