package types

// Kind identifies the value shape of a column and of the cells stored in it.
type Kind string

// Column kinds.
const (
	KindPoint    Kind = "point"
	KindLine     Kind = "line"
	KindPolygon  Kind = "polygon"
	KindString   Kind = "string"
	KindNumber   Kind = "number"
	KindRichText Kind = "richtext"
	KindBool     Kind = "bool"
	KindDate     Kind = "date"
	KindIcon     Kind = "icon"
)

// Kinds lists every column kind in a stable order.
var Kinds = []Kind{
	KindPoint,
	KindLine,
	KindPolygon,
	KindString,
	KindNumber,
	KindRichText,
	KindBool,
	KindDate,
	KindIcon,
}

var validKinds = map[Kind]bool{
	KindPoint:    true,
	KindLine:     true,
	KindPolygon:  true,
	KindString:   true,
	KindNumber:   true,
	KindRichText: true,
	KindBool:     true,
	KindDate:     true,
	KindIcon:     true,
}

// ValidKind reports whether k is a recognized column kind.
func ValidKind(k Kind) bool {
	return validKinds[k]
}

// IsGeometry reports whether k holds coordinates.
func (k Kind) IsGeometry() bool {
	return k == KindPoint || k == KindLine || k == KindPolygon
}

// KindOf returns the declared kind of a column. Callers use it to pick a
// parser or a cell table; values are never inspected to find their kind.
func KindOf(c *Column) Kind {
	return c.Kind
}
