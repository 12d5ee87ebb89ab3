package collectionstore

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FieldType is the storage shape of a field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeRef     FieldType = "ref"
)

// FieldMeta carries presentation hints for form-driven clients.
// Setting references a settings document path as "<file>#<dotted.path>".
type FieldMeta struct {
	Label       string  `json:"label,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
	InputType   string  `json:"type,omitempty"`
	Readonly    bool    `json:"readonly,omitempty"`
	Step        float64 `json:"step,omitempty"`
	Setting     string  `json:"setting,omitempty"`
}

// FieldShape describes one field of a collection.
type FieldShape struct {
	Name     string                  `json:"name"`
	Type     FieldType               `json:"type"`
	Ref      string                  `json:"ref,omitempty"`
	Required bool                    `json:"required,omitempty"`
	Unique   bool                    `json:"unique,omitempty"`
	Hidden   bool                    `json:"-"`
	Default  func(now time.Time) any `json:"-"`
	Meta     FieldMeta               `json:"metadata"`
}

// HookEnv is what a hook may read from the store while a write is being prepared.
type HookEnv interface {
	Count(ctx context.Context, collection string, where Predicate) (int, error)
	Now() time.Time
	Location() *time.Location
}

// Hook mutates or rejects a record before it is written.
type Hook func(ctx context.Context, env HookEnv, rec Record) error

// CollectionSpec is the schema and write pipeline of one collection.
type CollectionSpec struct {
	Name         string
	Fields       []FieldShape
	BeforeCreate []Hook
	BeforeUpdate []Hook
}

// Field looks a field up by name.
func (s CollectionSpec) Field(name string) (FieldShape, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return FieldShape{}, false
}

// SearchableFields lists visible string and number fields in declaration order.
func (s CollectionSpec) SearchableFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Hidden {
			continue
		}
		if f.Type == TypeString || f.Type == TypeNumber {
			names = append(names, f.Name)
		}
	}

	return names
}

// UniqueFields lists fields whose values must be unique within the collection.
func (s CollectionSpec) UniqueFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Unique {
			names = append(names, f.Name)
		}
	}

	return names
}

// HiddenFields lists fields that are never returned to clients.
func (s CollectionSpec) HiddenFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Hidden {
			names = append(names, f.Name)
		}
	}

	return names
}

// VisibleShapes returns the shapes exposed by the schema endpoint.
func (s CollectionSpec) VisibleShapes() []FieldShape {
	shapes := make([]FieldShape, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Hidden {
			shapes = append(shapes, f)
		}
	}

	return shapes
}

// Coerce converts the declared fields of rec to their storage types.
// Empty strings for non-string fields become nil, unknown fields pass through unchanged.
func (s CollectionSpec) Coerce(rec Record, loc *time.Location) (Record, error) {
	out := rec.Clone()
	for _, f := range s.Fields {
		v, ok := out[f.Name]
		if !ok {
			continue
		}

		coerced, err := f.CoerceValue(v, loc)
		if err != nil {
			return nil, err
		}

		out[f.Name] = coerced
	}

	return out, nil
}

// CoerceValue converts v to the field's storage type. It returns nil for an empty non-string input.
func (f FieldShape) CoerceValue(v any, loc *time.Location) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case TypeDate:
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, nil
		}
		t, err := ParseDate(v, loc)
		if err != nil {
			return nil, Invalid("%s must be a date", f.Name)
		}
		return t, nil

	case TypeNumber:
		if n, ok := toFloat(v); ok {
			return n, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, Invalid("%s must be a number", f.Name)
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, Invalid("%s must be a number", f.Name)
		}
		return n, nil

	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if strings.TrimSpace(x) == "" {
				return nil, nil
			}
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, Invalid("%s must be a boolean", f.Name)
			}
			return b, nil
		default:
			return nil, Invalid("%s must be a boolean", f.Name)
		}

	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case map[string]any, []any:
			return nil, Invalid("%s must be a scalar value", f.Name)
		default:
			return ScalarText(x), nil
		}
	}
}

/***** Registry *****/

// Registry resolves collection names to their specs. It is built once at startup and read-only afterwards.
type Registry struct {
	specs map[string]CollectionSpec
	names []string
}

// NewRegistry registers specs in the given order.
func NewRegistry(specs ...CollectionSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]CollectionSpec, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, ErrEmptyCollectionName
		}
		if _, exists := r.specs[spec.Name]; exists {
			return nil, ErrDuplicateCollection
		}

		r.specs[spec.Name] = spec
		r.names = append(r.names, spec.Name)
	}

	return r, nil
}

// Lookup returns the spec or a NotFoundError listing the available collections.
func (r *Registry) Lookup(name string) (CollectionSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return CollectionSpec{}, &NotFoundError{Kind: KindCollection, Name: name, Available: r.Names()}
	}

	return spec, nil
}

// Names lists registered collections in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Specs lists registered specs in registration order.
func (r *Registry) Specs() []CollectionSpec {
	specs := make([]CollectionSpec, 0, len(r.names))
	for _, n := range r.names {
		specs = append(specs, r.specs[n])
	}

	return specs
}
