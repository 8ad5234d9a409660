package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	googleschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

// SchemaFor reflects T into a strict response format: every property is
// required and additional properties are rejected, which is what providers
// with a strict structured output mode expect. Optional fields are expressed
// with Nullable from T's JSONSchemaExtend method.
//
// Example:
//
//	format := ai.SchemaFor[Invoice]("invoice")
//	inv, err := ai.Extract[Invoice](ctx, client, messages, format)
func SchemaFor[T any](name string) *ResponseFormat {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: false,
	}
	var zero T
	s := r.Reflect(zero)
	s.Version = ""
	return &ResponseFormat{Name: name, Schema: s, validator: &schemaValidator{}}
}

// Nullable allows null for the named properties of an object schema.
// A property reflected as oneOf [T, null] is rewritten to anyOf, the only
// union form strict providers accept.
func Nullable(s *jsonschema.Schema, props ...string) {
	if s == nil || s.Properties == nil {
		return
	}
	for _, name := range props {
		p, ok := s.Properties.Get(name)
		if !ok || p == nil {
			continue
		}
		if isNullable(p.OneOf) {
			p.AnyOf, p.OneOf = p.OneOf, nil
			continue
		}
		if isNullable(p.AnyOf) || p.Type == "null" {
			continue
		}
		s.Properties.Set(name, &jsonschema.Schema{
			Description: p.Description,
			AnyOf:       []*jsonschema.Schema{p, {Type: "null"}},
		})
	}
}

func isNullable(branches []*jsonschema.Schema) bool {
	for _, b := range branches {
		if b != nil && b.Type == "null" {
			return true
		}
	}
	return false
}

// SetEnum replaces the allowed values of a string property. For a nullable
// property the enum is set on the non-null branch. It must be called before
// the format is first used for validation.
func (f *ResponseFormat) SetEnum(prop string, values []string) error {
	if f.Schema == nil || f.Schema.Properties == nil {
		return fmt.Errorf("schema %q has no properties", f.Name)
	}
	p, ok := f.Schema.Properties.Get(prop)
	if !ok || p == nil {
		return fmt.Errorf("schema %q has no property %q", f.Name, prop)
	}
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}

	target := p
	for _, b := range p.AnyOf {
		if b != nil && b.Type != "null" {
			target = b
			break
		}
	}
	target.Enum = enum
	if f.validator != nil {
		f.validator = &schemaValidator{}
	}
	return nil
}

// Map returns the schema as a generic JSON object, the form provider SDKs
// take for response schemas.
func (f *ResponseFormat) Map() (map[string]any, error) {
	raw, err := json.Marshal(f.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema %q: %w", f.Name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("converting schema %q: %w", f.Name, err)
	}
	return m, nil
}

type schemaValidator struct {
	once     sync.Once
	resolved *googleschema.Resolved
	err      error
}

// validate checks a decoded JSON instance against the schema.
func (f *ResponseFormat) validate(instance any) error {
	var (
		resolved *googleschema.Resolved
		err      error
	)
	if f.validator == nil {
		resolved, err = compile(f.Schema)
	} else {
		f.validator.once.Do(func() {
			f.validator.resolved, f.validator.err = compile(f.Schema)
		})
		resolved, err = f.validator.resolved, f.validator.err
	}
	if err != nil {
		return fmt.Errorf("compiling schema %q: %w", f.Name, err)
	}
	return resolved.Validate(instance)
}

// compile converts the reflected schema into a resolved validator.
func compile(s *jsonschema.Schema) (*googleschema.Resolved, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var gs googleschema.Schema
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, err
	}
	return gs.Resolve(nil)
}
