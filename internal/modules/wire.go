package modules

import (
	"encoding/json"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Descriptor list wire format:
//
//	{"tools":[{"name":..,"description":..,"input_schema":{..}}]}
//
// Decoding also accepts "args_schema" for the schema key.

// EncodeTools writes a descriptor list.
func EncodeTools(e *jx.Encoder, tools []Tool) error {
	var firstErr error
	e.Obj(func(e *jx.Encoder) {
		e.Field("tools", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, t := range tools {
					if err := encodeTool(e, t); err != nil && firstErr == nil {
						firstErr = errors.Wrapf(err, "encode tool %s", t.Name)
					}
				}
			})
		})
	})
	return firstErr
}

func encodeTool(e *jx.Encoder, t Tool) error {
	var err error
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(t.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(t.Description) })
		e.Field("input_schema", func(e *jx.Encoder) { err = encodeSchema(e, t.InputSchema) })
	})
	return err
}

func encodeSchema(e *jx.Encoder, s InputSchema) error {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(s.Type) })
		e.Field("properties", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, k := range keys {
					e.Field(k, func(e *jx.Encoder) {
						if perr := encodeProperty(e, s.Properties[k]); perr != nil && err == nil {
							err = errors.Wrapf(perr, "property %s", k)
						}
					})
				}
			})
		})
		if len(s.Required) > 0 {
			e.Field("required", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, r := range s.Required {
						e.Str(r)
					}
				})
			})
		}
	})
	return err
}

func encodeProperty(e *jx.Encoder, p Property) error {
	var def []byte
	if p.Default != nil {
		b, err := json.Marshal(p.Default)
		if err != nil {
			return errors.Wrap(err, "marshal default")
		}
		def = b
	}

	var err error
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(p.Type) })
		if p.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		}
		if def != nil {
			e.Field("default", func(e *jx.Encoder) { e.Raw(def) })
		}
		if p.Minimum != nil {
			e.Field("minimum", func(e *jx.Encoder) { e.Float64(*p.Minimum) })
		}
		if p.Items != nil {
			e.Field("items", func(e *jx.Encoder) { err = encodeProperty(e, *p.Items) })
		}
	})
	return err
}

// Descriptor is one entry of a fetched descriptor list. The schema is kept
// raw: clients bind their local schema and only need the name.
type Descriptor struct {
	Name        string
	Description string
	Schema      jx.Raw
	// Err is set when the entry is not a usable descriptor. Name may be empty.
	Err error
}

// Tool converts d into a Tool, decoding the schema strictly.
func (d Descriptor) Tool() (Tool, error) {
	if d.Err != nil {
		return Tool{}, d.Err
	}
	t := Tool{Name: d.Name, Description: d.Description}
	if len(d.Schema) > 0 {
		if err := json.Unmarshal(d.Schema, &t.InputSchema); err != nil {
			return Tool{}, errors.Wrapf(err, "%s: input schema", d.Name)
		}
	}
	return t, nil
}

// DecodeDescriptors parses a descriptor list. Unknown fields are skipped.
// A body that is not a list is an error; an entry that is not a descriptor is
// returned with Err set and does not affect its neighbours.
func DecodeDescriptors(data []byte) ([]Descriptor, error) {
	var (
		descs []Descriptor
		seen  bool
	)
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "tools" {
			return d.Skip()
		}
		seen = true
		descs = []Descriptor{}
		return d.Arr(func(d *jx.Decoder) error {
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrapf(err, "tool #%d", len(descs))
			}
			descs = append(descs, decodeDescriptor(raw))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode tool list")
	}
	if !seen {
		return nil, errors.New(`decode tool list: missing "tools"`)
	}
	return descs, nil
}

func decodeDescriptor(raw jx.Raw) Descriptor {
	var desc Descriptor
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		desc.Err = errors.New("descriptor is not an object")
		return desc
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			desc.Name = v
			return nil
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "description")
			}
			desc.Description = v
			return nil
		case "input_schema", "args_schema":
			v, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, key)
			}
			desc.Schema = v
			return nil
		default:
			return d.Skip()
		}
	})
	switch {
	case err != nil:
		desc.Err = err
	case desc.Name == "":
		desc.Err = errors.New("missing name")
	}
	return desc
}
