package modules

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/invopop/jsonschema"
)

// FieldDefaulter is implemented by tool input structs that declare default
// values for optional fields. Defaults are published in the schema and
// applied by ValidateParams.
type FieldDefaulter interface {
	FieldDefaults() map[string]any
}

var reflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	AllowAdditionalProperties:  false,
	DoNotReference:             true,
	ExpandedStruct:             true,
}

// SchemaFor derives a tool InputSchema from an input struct.
// The struct's json and jsonschema tags are the only place a field contract is
// written down; server descriptors and client bindings both come from here.
func SchemaFor(input any) (InputSchema, error) {
	raw, err := json.Marshal(reflector.Reflect(input))
	if err != nil {
		return InputSchema{}, errors.Wrap(err, "marshal reflected schema")
	}

	var schema InputSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return InputSchema{}, errors.Wrap(err, "decode reflected schema")
	}
	if schema.Type != "object" {
		return InputSchema{}, errors.Errorf("input %T: expected object schema, got %q", input, schema.Type)
	}
	if schema.Properties == nil {
		schema.Properties = map[string]Property{}
	}

	if d, ok := input.(FieldDefaulter); ok {
		for key, val := range d.FieldDefaults() {
			prop, declared := schema.Properties[key]
			if !declared {
				return InputSchema{}, errors.Errorf("input %T: default for undeclared field %q", input, key)
			}
			prop.Default = val
			schema.Properties[key] = prop
		}
	}
	return schema, nil
}
