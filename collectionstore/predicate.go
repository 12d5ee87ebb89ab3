package collectionstore

import (
	"fmt"
	"strings"
	"time"
)

// Operator is a comparison operator of a Compare predicate.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
)

// PredicateKind tags the variant held by a Predicate.
type PredicateKind int

const (
	KindAll PredicateKind = iota
	KindNone
	KindAnd
	KindOr
	KindCompare
	KindMissing
	KindContains
)

/***** Predicate *****/

// Predicate is an engine-agnostic boolean expression over record fields.
// The zero value matches every record.
type Predicate struct {
	kind     PredicateKind
	field    string
	op       Operator
	value    any
	children []Predicate
}

func (p Predicate) Kind() PredicateKind {
	return p.kind
}

func (p Predicate) Field() string {
	return p.field
}

func (p Predicate) Op() Operator {
	return p.op
}

func (p Predicate) Value() any {
	return p.value
}

func (p Predicate) Children() []Predicate {
	return p.children
}

// IsAll reports whether p matches every record.
func (p Predicate) IsAll() bool {
	return p.kind == KindAll
}

/***** Constructors *****/

// All matches every record.
func All() Predicate {
	return Predicate{kind: KindAll}
}

// None matches no record.
func None() Predicate {
	return Predicate{kind: KindNone}
}

// And combines predicates conjunctively. Match-all operands are dropped and a single operand is returned as is.
func And(predicates ...Predicate) Predicate {
	children := make([]Predicate, 0, len(predicates))
	for _, p := range predicates {
		switch p.kind {
		case KindAll:
			continue
		case KindNone:
			return None()
		case KindAnd:
			children = append(children, p.children...)
		default:
			children = append(children, p)
		}
	}

	switch len(children) {
	case 0:
		return All()
	case 1:
		return children[0]
	default:
		return Predicate{kind: KindAnd, children: children}
	}
}

// Or combines predicates disjunctively. An empty Or matches nothing.
func Or(predicates ...Predicate) Predicate {
	children := make([]Predicate, 0, len(predicates))
	for _, p := range predicates {
		switch p.kind {
		case KindAll:
			return All()
		case KindNone:
			continue
		case KindOr:
			children = append(children, p.children...)
		default:
			children = append(children, p)
		}
	}

	switch len(children) {
	case 0:
		return None()
	case 1:
		return children[0]
	default:
		return Predicate{kind: KindOr, children: children}
	}
}

func Compare(field string, op Operator, value any) Predicate {
	return Predicate{kind: KindCompare, field: field, op: op, value: value}
}

func Eq(field string, value any) Predicate  { return Compare(field, OpEq, value) }
func Ne(field string, value any) Predicate  { return Compare(field, OpNe, value) }
func Lt(field string, value any) Predicate  { return Compare(field, OpLt, value) }
func Lte(field string, value any) Predicate { return Compare(field, OpLte, value) }
func Gt(field string, value any) Predicate  { return Compare(field, OpGt, value) }
func Gte(field string, value any) Predicate { return Compare(field, OpGte, value) }

// IDEquals matches the record with the given id.
func IDEquals(id string) Predicate {
	return Eq(FieldID, id)
}

// IDNotEquals matches every record except the one with the given id.
func IDNotEquals(id string) Predicate {
	return Ne(FieldID, id)
}

// Missing matches records where field is absent or null.
func Missing(field string) Predicate {
	return Predicate{kind: KindMissing, field: field}
}

// Contains matches records whose field, rendered as text, contains substring case-insensitively.
// The substring is literal.
func Contains(field, substring string) Predicate {
	return Predicate{kind: KindContains, field: field, value: substring}
}

/***** Rendering *****/

// String renders the predicate in a compact prefix notation, e.g. and(eq(CarId,"c1"),missing(ReturnDate)).
func (p Predicate) String() string {
	var b strings.Builder
	p.write(&b)

	return b.String()
}

func (p Predicate) write(b *strings.Builder) {
	switch p.kind {
	case KindAll:
		b.WriteString("all")
	case KindNone:
		b.WriteString("none")
	case KindAnd, KindOr:
		if p.kind == KindAnd {
			b.WriteString("and(")
		} else {
			b.WriteString("or(")
		}
		for i, c := range p.children {
			if i > 0 {
				b.WriteByte(',')
			}
			c.write(b)
		}
		b.WriteByte(')')
	case KindCompare:
		fmt.Fprintf(b, "%s(%s,%s)", p.op, p.field, renderValue(p.value))
	case KindMissing:
		fmt.Fprintf(b, "missing(%s)", p.field)
	case KindContains:
		fmt.Fprintf(b, "contains(%s,%q)", p.field, p.value)
	}
}

func renderValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return x.UTC().Format(StorageTimeLayout)
	default:
		return fmt.Sprintf("%v", x)
	}
}
