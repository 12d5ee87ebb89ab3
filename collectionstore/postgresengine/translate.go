package postgresengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	colCollection = "collection"
	colID         = "id"
	colData       = "data"
	colSeq        = "seq"

	fieldText  = "(" + colData + "->>(?::text))"
	fieldJSONB = "(" + colData + "->(?::text))"
	castJSONB  = "?::jsonb"
)

var sqlOperators = map[collectionstore.Operator]string{
	collectionstore.OpEq:  "=",
	collectionstore.OpNe:  "IS DISTINCT FROM",
	collectionstore.OpLt:  "<",
	collectionstore.OpLte: "<=",
	collectionstore.OpGt:  ">",
	collectionstore.OpGte: ">=",
}

// translate turns a predicate into a goqu expression over the data column.
//
// Strings and dates compare as text. Numbers and booleans compare as jsonb, so a value of
// another JSON type never raises a cast error.
func translate(p collectionstore.Predicate) (exp.Expression, error) {
	switch p.Kind() {
	case collectionstore.KindAll:
		return goqu.L("TRUE"), nil

	case collectionstore.KindNone:
		return goqu.L("FALSE"), nil

	case collectionstore.KindAnd, collectionstore.KindOr:
		children := make([]exp.Expression, 0, len(p.Children()))
		for _, c := range p.Children() {
			e, err := translate(c)
			if err != nil {
				return nil, err
			}
			children = append(children, e)
		}

		if p.Kind() == collectionstore.KindAnd {
			return goqu.And(children...), nil
		}

		return goqu.Or(children...), nil

	case collectionstore.KindMissing:
		if p.Field() == collectionstore.FieldID {
			return goqu.L("FALSE"), nil
		}

		return goqu.L(fieldText+" IS NULL", p.Field()), nil

	case collectionstore.KindContains:
		pattern := "%" + escapeLike(fmt.Sprint(p.Value())) + "%"
		if p.Field() == collectionstore.FieldID {
			return goqu.L(`"`+colID+`" ILIKE ?`, pattern), nil
		}

		return goqu.L(fieldText+" ILIKE ?", p.Field(), pattern), nil

	case collectionstore.KindCompare:
		return translateCompare(p)

	default:
		return nil, fmt.Errorf("unsupported predicate kind %d", p.Kind())
	}
}

func translateCompare(p collectionstore.Predicate) (exp.Expression, error) {
	op, ok := sqlOperators[p.Op()]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %q", p.Op())
	}

	if p.Field() == collectionstore.FieldID {
		return goqu.L(`"`+colID+`" `+op+" ?", collectionstore.ScalarText(p.Value())), nil
	}

	switch v := p.Value().(type) {
	case string:
		return goqu.L(fieldText+" "+op+" ?::text", p.Field(), v), nil

	case time.Time:
		return goqu.L(fieldText+" "+op+" ?::text", p.Field(), v.UTC().Format(collectionstore.StorageTimeLayout)), nil

	case nil:
		if p.Op() == collectionstore.OpEq {
			return goqu.L(fieldText+" IS NULL", p.Field()), nil
		}
		return goqu.L(fieldText+" IS NOT NULL", p.Field()), nil

	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}

		return goqu.L(fieldJSONB+" "+op+" "+castJSONB, p.Field(), string(raw)), nil
	}
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy sorts by the requested fields; missing values come first ascending, like memengine.
// The insertion sequence breaks ties.
func orderBy(sort []collectionstore.SortField) []exp.OrderedExpression {
	ordered := make([]exp.OrderedExpression, 0, len(sort)+1)
	for _, s := range sort {
		var e exp.OrderedExpression
		switch {
		case s.Field == collectionstore.FieldID && s.Desc:
			e = goqu.I(colID).Desc()
		case s.Field == collectionstore.FieldID:
			e = goqu.I(colID).Asc()
		case s.Desc:
			e = goqu.L(fieldJSONB, s.Field).Desc().NullsLast()
		default:
			e = goqu.L(fieldJSONB, s.Field).Asc().NullsFirst()
		}
		ordered = append(ordered, e)
	}

	return append(ordered, goqu.I(colSeq).Asc())
}

// toWire prepares a record for the data column: the id lives in its own column and dates
// become UTC text in StorageTimeLayout.
func toWire(rec collectionstore.Record) ([]byte, error) {
	wire := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == collectionstore.FieldID {
			continue
		}

		switch x := v.(type) {
		case time.Time:
			wire[k] = x.UTC().Format(collectionstore.StorageTimeLayout)
		case *time.Time:
			if x == nil {
				wire[k] = nil
			} else {
				wire[k] = x.UTC().Format(collectionstore.StorageTimeLayout)
			}
		default:
			wire[k] = v
		}
	}

	return json.Marshal(wire)
}

func fromWire(id string, data []byte) (collectionstore.Record, error) {
	rec := make(collectionstore.Record)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
	}

	rec[collectionstore.FieldID] = id

	return rec, nil
}
