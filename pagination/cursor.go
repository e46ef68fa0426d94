package pagination

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// cursorSeparator splits the sort-key value from the id tie-breaker in the
// wire encoding of a cursor.
const cursorSeparator = "~"

// cursorTimeLayout is RFC 3339 with a fixed nine-digit fractional second.
// RFC3339Nano trims trailing fractional zeros, which makes lexicographic
// order disagree with chronological order; the fixed width keeps the two
// aligned for stores that compare the cursor value as text.
const cursorTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Cursor is a forward-only paging position: the sort-key value of the last
// row seen, plus that row's id as a tie-breaker for non-unique sort keys.
type Cursor struct {
	Value string
	ID    string
}

// ParseCursor decodes a wire cursor. A value without a separator is a plain
// single-value cursor (ID empty), accepted for compatibility with clients
// that echo only the sort-key value back.
func ParseCursor(s string) Cursor {
	value, id, found := strings.Cut(s, cursorSeparator)
	if !found {
		return Cursor{Value: s}
	}
	return Cursor{Value: value, ID: id}
}

// String encodes the cursor for the wire.
func (c Cursor) String() string {
	if c.ID == "" {
		return c.Value
	}
	return c.Value + cursorSeparator + c.ID
}

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool { return c.Value == "" && c.ID == "" }

// extractField reads the named column's value from a record using
// reflection, matching snake_case column names to exported Go fields
// (created_at -> CreatedAt, id -> ID). Time values are formatted with
// cursorTimeLayout.
func extractField(record any, column string) string {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ""
	}

	field := v.FieldByName(fieldNameForColumn(column))
	if !field.IsValid() || !field.CanInterface() {
		return ""
	}

	switch t := field.Interface().(type) {
	case time.Time:
		return t.UTC().Format(cursorTimeLayout)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// fieldNameForColumn maps a snake_case column to the conventional exported
// field name: each segment is capitalized, with "id" upper-cased wholesale.
func fieldNameForColumn(column string) string {
	segs := strings.Split(column, "_")
	var b strings.Builder
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		if seg == "id" {
			b.WriteString("ID")
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]))
		b.WriteString(seg[1:])
	}
	return b.String()
}
