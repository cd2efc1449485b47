package store

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// cellCodec maps one column kind to its cell table.
type cellCodec struct {
	table string
	cols  []string // value columns after row_id and column_id

	encode  func(types.Value) ([]any, error)
	newDest func() []any
	decode  func(dest []any) (types.Value, error)
}

var codecs = map[types.Kind]cellCodec{
	types.KindString:   textCodec(types.KindString, "string_cells", func(s string) types.Value { return types.StringValue(s) }),
	types.KindRichText: textCodec(types.KindRichText, "richtext_cells", func(s string) types.Value { return types.RichTextValue(s) }),
	types.KindIcon:     textCodec(types.KindIcon, "icon_cells", func(s string) types.Value { return types.IconValue(s) }),
	types.KindNumber: {
		table: "number_cells",
		cols:  []string{"v"},
		encode: func(v types.Value) ([]any, error) {
			n, ok := v.(types.NumberValue)
			if !ok {
				return nil, mismatch(types.KindNumber, v)
			}
			return []any{float64(n)}, nil
		},
		newDest: func() []any { return []any{new(float64)} },
		decode: func(dest []any) (types.Value, error) {
			return types.NumberValue(*dest[0].(*float64)), nil
		},
	},
	types.KindBool: {
		table: "bool_cells",
		cols:  []string{"v"},
		encode: func(v types.Value) ([]any, error) {
			bv, ok := v.(types.BoolValue)
			if !ok {
				return nil, mismatch(types.KindBool, v)
			}
			if bv {
				return []any{1}, nil
			}
			return []any{0}, nil
		},
		newDest: func() []any { return []any{new(int64)} },
		decode: func(dest []any) (types.Value, error) {
			return types.BoolValue(*dest[0].(*int64) != 0), nil
		},
	},
	types.KindDate: {
		table: "date_cells",
		cols:  []string{"v"},
		encode: func(v types.Value) ([]any, error) {
			dv, ok := v.(types.DateValue)
			if !ok {
				return nil, mismatch(types.KindDate, v)
			}
			return []any{formatTime(dv.Time)}, nil
		},
		newDest: func() []any { return []any{new(string)} },
		decode: func(dest []any) (types.Value, error) {
			t, err := parseTime(*dest[0].(*string))
			if err != nil {
				return nil, fmt.Errorf("decoding date cell: %w", err)
			}
			return types.DateValue{Time: t}, nil
		},
	},
	types.KindPoint: {
		table: "point_cells",
		cols:  []string{"lat", "lng"},
		encode: func(v types.Value) ([]any, error) {
			p, ok := v.(types.PointValue)
			if !ok {
				return nil, mismatch(types.KindPoint, v)
			}
			return []any{p.Lat, p.Lng}, nil
		},
		newDest: func() []any { return []any{new(float64), new(float64)} },
		decode: func(dest []any) (types.Value, error) {
			return types.PointValue{Lat: *dest[0].(*float64), Lng: *dest[1].(*float64)}, nil
		},
	},
	types.KindLine: {
		table: "line_cells",
		cols:  []string{"coordinates"},
		encode: func(v types.Value) ([]any, error) {
			lv, ok := v.(types.LineValue)
			if !ok {
				return nil, mismatch(types.KindLine, v)
			}
			b, err := json.Marshal(lv.Raw())
			if err != nil {
				return nil, err
			}
			return []any{string(b)}, nil
		},
		newDest: func() []any { return []any{new(string)} },
		decode: func(dest []any) (types.Value, error) {
			var pairs [][2]float64
			if err := json.Unmarshal([]byte(*dest[0].(*string)), &pairs); err != nil {
				return nil, fmt.Errorf("decoding line cell: %w", err)
			}
			return types.LineValue(positions(pairs)), nil
		},
	},
	types.KindPolygon: {
		table: "polygon_cells",
		cols:  []string{"coordinates"},
		encode: func(v types.Value) ([]any, error) {
			pv, ok := v.(types.PolygonValue)
			if !ok {
				return nil, mismatch(types.KindPolygon, v)
			}
			b, err := json.Marshal(pv.Raw())
			if err != nil {
				return nil, err
			}
			return []any{string(b)}, nil
		},
		newDest: func() []any { return []any{new(string)} },
		decode: func(dest []any) (types.Value, error) {
			var rings [][][2]float64
			if err := json.Unmarshal([]byte(*dest[0].(*string)), &rings); err != nil {
				return nil, fmt.Errorf("decoding polygon cell: %w", err)
			}
			out := make(types.PolygonValue, len(rings))
			for i, r := range rings {
				out[i] = positions(r)
			}
			return out, nil
		},
	},
}

func textCodec(kind types.Kind, table string, wrap func(string) types.Value) cellCodec {
	return cellCodec{
		table: table,
		cols:  []string{"v"},
		encode: func(v types.Value) ([]any, error) {
			if v.Kind() != kind {
				return nil, mismatch(kind, v)
			}
			return []any{v.Raw().(string)}, nil
		},
		newDest: func() []any { return []any{new(string)} },
		decode: func(dest []any) (types.Value, error) {
			return wrap(*dest[0].(*string)), nil
		},
	}
}

func mismatch(want types.Kind, v types.Value) error {
	return fmt.Errorf("%w: expected %s value, got %s", types.ErrInvalidValue, want, v.Kind())
}

// positions converts GeoJSON [lng, lat] pairs.
func positions(pairs [][2]float64) []types.Position {
	out := make([]types.Position, len(pairs))
	for i, p := range pairs {
		out[i] = types.Position{Lng: p[0], Lat: p[1]}
	}
	return out
}

// codecFor returns the codec of kind.
func codecFor(kind types.Kind) (cellCodec, error) {
	c, ok := codecs[kind]
	if !ok {
		return cellCodec{}, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	return c, nil
}
