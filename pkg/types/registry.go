package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RichTextValidator checks structured rich-text documents. Document schemas
// belong to the editor, so the registry only asks a yes or no question.
type RichTextValidator interface {
	ValidateDocument(doc []byte) error
}

// RichTextValidatorFunc adapts a function to RichTextValidator.
type RichTextValidatorFunc func(doc []byte) error

func (f RichTextValidatorFunc) ValidateDocument(doc []byte) error {
	return f(doc)
}

// DocumentShape accepts any JSON object with a non-empty string "type"
// member and, when present, an array "content" member.
var DocumentShape RichTextValidator = RichTextValidatorFunc(func(doc []byte) error {
	var node map[string]any
	if err := json.Unmarshal(doc, &node); err != nil {
		return errors.New("document must be a JSON object")
	}
	if t, _ := node["type"].(string); t == "" {
		return errors.New(`document needs a string "type"`)
	}
	if c, ok := node["content"]; ok {
		if _, isList := c.([]any); !isList {
			return errors.New(`document "content" must be an array`)
		}
	}
	return nil
})

// Registry turns raw input into typed values.
type Registry struct {
	richText RichTextValidator
}

// NewRegistry returns a Registry that delegates rich-text checks to rt.
// A nil rt falls back to DocumentShape.
func NewRegistry(rt RichTextValidator) *Registry {
	if rt == nil {
		rt = DocumentShape
	}
	return &Registry{richText: rt}
}

// DefaultRegistry is the registry used by Validate.
var DefaultRegistry = NewRegistry(nil)

// Validate parses raw as a value of kind using DefaultRegistry.
func Validate(kind Kind, raw any) (Value, error) {
	return DefaultRegistry.Validate(kind, raw)
}

// Validate parses raw according to the grammar of kind. Failures are
// *ValidationError values carrying the kind and a reason.
func (r *Registry) Validate(kind Kind, raw any) (Value, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if raw == nil {
		return nil, invalid(kind, "value is required")
	}
	var (
		v   Value
		err error
	)
	switch kind {
	case KindPoint:
		v, err = parsePoint(raw)
	case KindLine:
		v, err = parseLine(raw)
	case KindPolygon:
		v, err = parsePolygon(raw)
	case KindString:
		v, err = parseString(raw)
	case KindNumber:
		v, err = parseNumber(raw)
	case KindBool:
		v, err = parseBool(raw)
	case KindDate:
		v, err = parseDate(raw)
	case KindRichText:
		v, err = r.parseRichText(raw)
	case KindIcon:
		v, err = parseIcon(raw)
	}
	if err != nil {
		return nil, invalid(kind, err.Error())
	}
	return v, nil
}

func invalid(kind Kind, reason string) *ValidationError {
	return &ValidationError{Kind: kind, Reason: reason}
}

// Geometry grammars. Map forms name lat/lng explicitly; array forms follow
// GeoJSON and put longitude first.

func parsePoint(raw any) (Value, error) {
	if s, ok := raw.(string); ok {
		if decoded, ok := decodeJSONText(s); ok {
			raw = decoded
		} else {
			return parseLatLngText(s)
		}
	}
	if m, ok := raw.(map[string]any); ok && m["type"] != nil {
		coords, err := geoJSONCoordinates(m, "Point")
		if err != nil {
			return nil, err
		}
		raw = coords
	}
	p, err := parsePosition(raw)
	if err != nil {
		return nil, err
	}
	return PointValue(p), nil
}

func parseLatLngText(s string) (Value, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, errors.New(`point text must be "lat,lng"`)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, errors.New("latitude is not a number")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, errors.New("longitude is not a number")
	}
	p := Position{Lat: lat, Lng: lng}
	if err := checkPosition(p); err != nil {
		return nil, err
	}
	return PointValue(p), nil
}

func parseLine(raw any) (Value, error) {
	raw, err := unwrapGeometry(raw, "LineString")
	if err != nil {
		return nil, err
	}
	if lv, ok := raw.(LineValue); ok {
		raw = []Position(lv)
	}
	ps, err := parsePositions(raw)
	if err != nil {
		return nil, err
	}
	if len(ps) < 2 {
		return nil, errors.New("line needs at least two positions")
	}
	return LineValue(ps), nil
}

func parsePolygon(raw any) (Value, error) {
	raw, err := unwrapGeometry(raw, "Polygon")
	if err != nil {
		return nil, err
	}
	var rings [][]Position
	switch v := raw.(type) {
	case PolygonValue:
		rings = v
	case [][]Position:
		rings = v
	case []any:
		for i, r := range v {
			ring, err := parsePositions(r)
			if err != nil {
				return nil, fmt.Errorf("ring %d: %w", i, err)
			}
			rings = append(rings, ring)
		}
	default:
		return nil, fmt.Errorf("polygon must be a list of rings, got %T", raw)
	}
	if len(rings) == 0 {
		return nil, errors.New("polygon needs at least one ring")
	}
	for i, ring := range rings {
		if len(ring) < 4 {
			return nil, fmt.Errorf("ring %d needs at least four positions", i)
		}
		for _, p := range ring {
			if err := checkPosition(p); err != nil {
				return nil, fmt.Errorf("ring %d: %w", i, err)
			}
		}
		if ring[0] != ring[len(ring)-1] {
			return nil, fmt.Errorf("ring %d is not closed", i)
		}
	}
	return PolygonValue(rings), nil
}

// unwrapGeometry decodes JSON text and strips a GeoJSON envelope of the
// expected type, returning the bare coordinates.
func unwrapGeometry(raw any, geoType string) (any, error) {
	if s, ok := raw.(string); ok {
		decoded, ok := decodeJSONText(s)
		if !ok {
			return nil, errors.New("geometry text must be JSON")
		}
		raw = decoded
	}
	if m, ok := raw.(map[string]any); ok {
		return geoJSONCoordinates(m, geoType)
	}
	return raw, nil
}

func geoJSONCoordinates(m map[string]any, geoType string) (any, error) {
	if t, _ := m["type"].(string); t != geoType {
		return nil, fmt.Errorf("expected GeoJSON %s, got %v", geoType, m["type"])
	}
	coords, ok := m["coordinates"]
	if !ok {
		return nil, errors.New("GeoJSON geometry has no coordinates")
	}
	return coords, nil
}

func parsePositions(raw any) ([]Position, error) {
	switch v := raw.(type) {
	case []Position:
		for _, p := range v {
			if err := checkPosition(p); err != nil {
				return nil, err
			}
		}
		return v, nil
	case []any:
		ps := make([]Position, 0, len(v))
		for i, item := range v {
			p, err := parsePosition(item)
			if err != nil {
				return nil, fmt.Errorf("position %d: %w", i, err)
			}
			ps = append(ps, p)
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("expected a list of positions, got %T", raw)
	}
}

func parsePosition(raw any) (Position, error) {
	var p Position
	switch v := raw.(type) {
	case Position:
		p = v
	case PointValue:
		p = Position(v)
	case map[string]any:
		lat, okLat := firstKey(v, "lat", "latitude")
		lng, okLng := firstKey(v, "lng", "lon", "longitude")
		if !okLat || !okLng {
			return p, errors.New("position needs lat and lng")
		}
		var ok bool
		if p.Lat, ok = toFloat(lat); !ok {
			return p, errors.New("latitude is not a number")
		}
		if p.Lng, ok = toFloat(lng); !ok {
			return p, errors.New("longitude is not a number")
		}
	case []any:
		if len(v) != 2 {
			return p, errors.New("position must be [lng, lat]")
		}
		var ok bool
		if p.Lng, ok = toFloat(v[0]); !ok {
			return p, errors.New("longitude is not a number")
		}
		if p.Lat, ok = toFloat(v[1]); !ok {
			return p, errors.New("latitude is not a number")
		}
	case []float64:
		if len(v) != 2 {
			return p, errors.New("position must be [lng, lat]")
		}
		p = Position{Lng: v[0], Lat: v[1]}
	default:
		return p, fmt.Errorf("unsupported position %T", raw)
	}
	return p, checkPosition(p)
}

func checkPosition(p Position) error {
	if !finite(p.Lat) || !finite(p.Lng) {
		return errors.New("coordinates must be finite")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v outside [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v outside [-180, 180]", p.Lng)
	}
	return nil
}

func firstKey(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// Scalar grammars.

func parseString(raw any) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected text, got %T", raw)
	}
	return StringValue(s), nil
}

func parseIcon(raw any) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected icon name, got %T", raw)
	}
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("icon name is empty")
	}
	return IconValue(s), nil
}

func parseNumber(raw any) (Value, error) {
	f, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("%v is not a number", raw)
	}
	if !finite(f) {
		return nil, errors.New("number must be finite")
	}
	return NumberValue(f), nil
}

func parseBool(raw any) (Value, error) {
	switch v := raw.(type) {
	case bool:
		return BoolValue(v), nil
	case string:
		switch v {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
	}
	return nil, fmt.Errorf(`expected true or false, got %v`, raw)
}

// dateLayouts are tried in order for text input.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func parseDate(raw any) (Value, error) {
	switch v := raw.(type) {
	case time.Time:
		return DateValue{Time: v.UTC()}, nil
	case DateValue:
		return DateValue{Time: v.Time.UTC()}, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateValue{Time: t.UTC()}, nil
			}
		}
		return nil, fmt.Errorf("%q is not an RFC 3339 timestamp or YYYY-MM-DD date", v)
	default:
		return nil, fmt.Errorf("expected a date, got %T", raw)
	}
}

func (r *Registry) parseRichText(raw any) (Value, error) {
	var doc []byte
	switch v := raw.(type) {
	case string:
		doc = []byte(v)
	case RichTextValue:
		doc = []byte(v)
	case json.RawMessage:
		doc = v
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		doc = b
	default:
		return nil, fmt.Errorf("expected a rich-text document, got %T", raw)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, doc); err != nil {
		return nil, errors.New("document is not valid JSON")
	}
	if err := r.richText.ValidateDocument(compact.Bytes()); err != nil {
		return nil, err
	}
	return RichTextValue(compact.String()), nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case NumberValue:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func decodeJSONText(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
