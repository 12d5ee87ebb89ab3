package collectionstore

import (
	"strings"
	"time"
)

// Matches evaluates p against rec. It defines the reference semantics every engine translates:
// comparisons between values of different types never match, except ne which then matches,
// and a missing field only satisfies ne and Missing.
func (p Predicate) Matches(rec Record) bool {
	switch p.kind {
	case KindAll:
		return true
	case KindNone:
		return false
	case KindAnd:
		for _, c := range p.children {
			if !c.Matches(rec) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range p.children {
			if c.Matches(rec) {
				return true
			}
		}
		return false
	case KindMissing:
		v, ok := rec[p.field]
		return !ok || v == nil
	case KindContains:
		return matchContains(rec[p.field], p.value)
	case KindCompare:
		return matchCompare(rec[p.field], p.op, p.value)
	default:
		return false
	}
}

func matchContains(v any, substring any) bool {
	sub, _ := substring.(string)
	switch v.(type) {
	case string, float64, float32, int, int32, int64:
	default:
		return false
	}

	return strings.Contains(strings.ToLower(ScalarText(v)), strings.ToLower(sub))
}

func matchCompare(v any, op Operator, operand any) bool {
	if v == nil {
		return op == OpNe
	}

	c, ok := CompareValues(v, operand)
	if !ok {
		return op == OpNe
	}

	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	default:
		return false
	}
}

// CompareValues orders two scalars of the same kind. ok is false when they are not comparable.
func CompareValues(a, b any) (c int, ok bool) {
	if ta, isTime := a.(time.Time); isTime {
		tb, isTime := b.(time.Time)
		if !isTime {
			return 0, false
		}
		return ta.Compare(tb), true
	}

	if na, isNum := toFloat(a); isNum {
		nb, isNum := toFloat(b)
		if !isNum {
			return 0, false
		}
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}

	switch x := a.(type) {
	case string:
		y, isString := b.(string)
		if !isString {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
