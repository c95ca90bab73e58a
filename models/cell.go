package models

import "strings"

// CellKind distinguishes the two shapes a table cell can take.
type CellKind int

const (
	KindScalar CellKind = iota
	KindSequence
)

// CellValue is either a single display string or an ordered list of
// strings (one per linked sub-value, e.g. a multi-type classification).
// The zero value is the empty scalar.
type CellValue struct {
	kind   CellKind
	scalar string
	items  []string
}

// Scalar returns a single-string cell.
func Scalar(s string) CellValue {
	return CellValue{kind: KindScalar, scalar: s}
}

// Sequence returns a multi-value cell. The items are copied.
func Sequence(items ...string) CellValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return CellValue{kind: KindSequence, items: cp}
}

func (c CellValue) Kind() CellKind { return c.kind }

func (c CellValue) IsSequence() bool { return c.kind == KindSequence }

// Items returns the sequence items, or a one-element slice for a scalar.
func (c CellValue) Items() []string {
	if c.kind == KindScalar {
		return []string{c.scalar}
	}
	cp := make([]string, len(c.items))
	copy(cp, c.items)
	return cp
}

// String renders the value for humans: scalars as-is, sequences joined by ", ".
func (c CellValue) String() string {
	if c.kind == KindScalar {
		return c.scalar
	}
	return strings.Join(c.items, ", ")
}

// Equal reports whether two cells have the same kind and content.
func (c CellValue) Equal(o CellValue) bool {
	if c.kind != o.kind {
		return false
	}
	if c.kind == KindScalar {
		return c.scalar == o.scalar
	}
	if len(c.items) != len(o.items) {
		return false
	}
	for i := range c.items {
		if c.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// Flatten is the single-line display transform applied to every cell text:
// newlines become "/" and carriage returns are dropped. Applying it twice
// yields the same result as applying it once.
func Flatten(s string) string {
	return flattener.Replace(s)
}

var flattener = strings.NewReplacer("\r", "", "\n", "/")

// Cell codec for delimited output.
//
// Scalars are written with '\' and ';' backslash-escaped. Sequences are
// written as every escaped item followed by ';' ("Grass;Poison;", "Fire;").
// A cell is decoded as a sequence iff it ends with an unescaped ';'.
const (
	seqTerminator = ';'
	escapeChar    = '\\'
)

// EncodeCell renders a cell as a single delimited-file field.
func EncodeCell(c CellValue) string {
	if c.kind == KindScalar {
		return escapeItem(c.scalar)
	}
	var b strings.Builder
	for _, item := range c.items {
		b.WriteString(escapeItem(item))
		b.WriteByte(seqTerminator)
	}
	return b.String()
}

// DecodeCell is the inverse of EncodeCell.
func DecodeCell(field string) CellValue {
	var (
		items   []string
		cur     strings.Builder
		escaped bool
		// endsOnTerminator is true when the last consumed rune was an
		// unescaped terminator.
		endsOnTerminator bool
	)
	for _, r := range field {
		endsOnTerminator = false
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == seqTerminator:
			items = append(items, cur.String())
			cur.Reset()
			endsOnTerminator = true
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		// dangling escape: keep the backslash literally
		cur.WriteRune(escapeChar)
	}
	if endsOnTerminator {
		return Sequence(items...)
	}
	if len(items) == 0 {
		return Scalar(cur.String())
	}
	// Unescaped terminators in the middle of a field that does not end on
	// one were not produced by EncodeCell; keep the text verbatim.
	return Scalar(field)
}

func escapeItem(s string) string {
	if !strings.ContainsAny(s, `\;`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == escapeChar || r == seqTerminator {
			b.WriteRune(escapeChar)
		}
		b.WriteRune(r)
	}
	return b.String()
}
