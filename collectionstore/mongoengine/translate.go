package mongoengine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

var ErrInvalidFieldName = errors.New("field names must not start with $ or contain NUL")

var mongoOperators = map[collectionstore.Operator]string{
	collectionstore.OpEq:  "$eq",
	collectionstore.OpNe:  "$ne",
	collectionstore.OpLt:  "$lt",
	collectionstore.OpLte: "$lte",
	collectionstore.OpGt:  "$gt",
	collectionstore.OpGte: "$gte",
}

// Translate converts a predicate into a MongoDB query document.
func Translate(p collectionstore.Predicate) (bson.D, error) {
	switch p.Kind() {
	case collectionstore.KindAll:
		return bson.D{}, nil

	case collectionstore.KindNone:
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}, nil

	case collectionstore.KindAnd, collectionstore.KindOr:
		children := make(bson.A, 0, len(p.Children()))
		for _, c := range p.Children() {
			d, err := Translate(c)
			if err != nil {
				return nil, err
			}
			children = append(children, d)
		}

		op := "$and"
		if p.Kind() == collectionstore.KindOr {
			op = "$or"
		}

		return bson.D{{Key: op, Value: children}}, nil

	case collectionstore.KindMissing:
		if err := checkField(p.Field()); err != nil {
			return nil, err
		}

		return bson.D{{Key: p.Field(), Value: nil}}, nil

	case collectionstore.KindContains:
		if err := checkField(p.Field()); err != nil {
			return nil, err
		}

		return bson.D{{Key: "$expr", Value: bson.D{{Key: "$regexMatch", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$toString", Value: "$" + p.Field()}}},
			{Key: "regex", Value: regexp.QuoteMeta(fmt.Sprint(p.Value()))},
			{Key: "options", Value: "i"},
		}}}}}, nil

	case collectionstore.KindCompare:
		if err := checkField(p.Field()); err != nil {
			return nil, err
		}

		op, ok := mongoOperators[p.Op()]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %q", p.Op())
		}

		return bson.D{{Key: p.Field(), Value: bson.D{{Key: op, Value: toBSONValue(p.Value())}}}}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate kind %d", p.Kind())
	}
}

func checkField(field string) error {
	if field == "" || strings.HasPrefix(field, "$") || strings.ContainsRune(field, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidFieldName, field)
	}

	return nil
}

// toBSONValue stores dates as BSON datetimes with millisecond precision.
func toBSONValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return primitive.NewDateTimeFromTime(*x)
	default:
		return v
	}
}

// sortDocument keeps the key order and appends _id as a tiebreaker.
func sortDocument(sort []collectionstore.SortField) bson.D {
	d := make(bson.D, 0, len(sort)+1)
	hasID := false
	for _, s := range sort {
		direction := 1
		if s.Desc {
			direction = -1
		}
		if s.Field == collectionstore.FieldID {
			hasID = true
		}
		d = append(d, bson.E{Key: s.Field, Value: direction})
	}

	if !hasID {
		d = append(d, bson.E{Key: collectionstore.FieldID, Value: 1})
	}

	return d
}

func toDocument(rec collectionstore.Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		doc[k] = toBSONValue(v)
	}

	return doc
}

// fromDocument converts driver types back to the plain Go values records carry.
func fromDocument(doc bson.M) collectionstore.Record {
	rec := make(collectionstore.Record, len(doc))
	for k, v := range doc {
		rec[k] = normalize(v)
	}

	return rec
}

func normalize(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	default:
		return v
	}
}
