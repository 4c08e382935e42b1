// Package requirement defines the closed family of abstract build
// requirements ognibuild resolves and installs: named capabilities like
// "a python package", "a pkg-config module", "a binary on PATH". Problems
// observed in build logs are converted to these before being handed to a
// Resolver.
package requirement

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ognibuild/ognibuild/session"
)

// Requirement is a single abstract capability a build needs. Family is a
// stable wire tag; Met checks whether the requirement is already
// satisfied inside a session without installing anything.
type Requirement interface {
	Family() string
	String() string
	Met(s session.Session) (bool, error)
}

// UnknownRequirementFamily is returned by Unmarshal when the wire family
// tag has no registered constructor.
type UnknownRequirementFamily struct {
	Family string
}

func (e *UnknownRequirementFamily) Error() string {
	return "unknown requirement family: " + e.Family
}

type decodeFunc func(payload json.RawMessage) (Requirement, error)

var registry = map[string]decodeFunc{}

// register associates a family tag with its JSON payload decoder. Called
// from each concrete type's init().
func register(family string, fn decodeFunc) {
	registry[family] = fn
}

// Families returns every registered requirement family tag, sorted, for
// callers (such as dep-server's /families endpoint) that need to
// advertise which requirement kinds Unmarshal understands.
func Families() []string {
	out := make([]string, 0, len(registry))
	for family := range registry {
		out = append(out, family)
	}
	sort.Strings(out)
	return out
}

// Marshal encodes r as the two-element wire form [family, payload].
func Marshal(r Requirement) ([]byte, error) {
	payload, err := marshalPayload(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal([2]interface{}{r.Family(), payload})
}

// Unmarshal decodes the two-element wire form [family, payload] produced
// by Marshal.
func Unmarshal(data []byte) (Requirement, error) {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding requirement envelope: %w", err)
	}
	var family string
	if err := json.Unmarshal(raw[0], &family); err != nil {
		return nil, fmt.Errorf("decoding requirement family: %w", err)
	}
	fn, ok := registry[family]
	if !ok {
		return nil, &UnknownRequirementFamily{Family: family}
	}
	return fn(raw[1])
}

// marshalPayload asks r to encode its own fields; every concrete type in
// this package implements an unexported payload() method used here via a
// local interface to keep Marshal generic without reflection.
func marshalPayload(r Requirement) (json.RawMessage, error) {
	type payloader interface {
		payload() (json.RawMessage, error)
	}
	p, ok := r.(payloader)
	if !ok {
		return nil, fmt.Errorf("requirement %T does not implement payload marshaling", r)
	}
	return p.payload()
}

func marshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// all payload types are plain structs of strings/ints/slices,
		// so this can only fail on a programming error.
		panic(err)
	}
	return b
}

// OneOf is satisfied if any of its elements is met; it is used for
// problems that can be fixed by any one of several alternative
// requirements (e.g. either of two interpreter implementations).
type OneOf struct {
	Elements []Requirement
}

func (o *OneOf) Family() string { return "or" }

func (o *OneOf) String() string {
	return fmt.Sprintf("one of %v", o.Elements)
}

func (o *OneOf) Met(s session.Session) (bool, error) {
	for _, el := range o.Elements {
		ok, err := el.Met(s)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (o *OneOf) payload() (json.RawMessage, error) {
	encoded := make([]json.RawMessage, len(o.Elements))
	for i, el := range o.Elements {
		b, err := Marshal(el)
		if err != nil {
			return nil, err
		}
		encoded[i] = b
	}
	return marshal(encoded), nil
}

// Schema returns a JSON Schema (draft-07) fragment describing the wire
// payload r.Marshal would produce: an object schema with one required
// string/number/boolean/array/object property per payload field, derived
// directly from a marshaled instance rather than hand-written per family.
// Its purpose is narrow -- keeping the envelope's payload shape honest as
// families are added, exercised against github.com/santhosh-tekuri/jsonschema/v5
// in tests -- not modeling every family's value constraints.
func Schema(r Requirement) ([]byte, error) {
	payload, err := marshalPayload(r)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("requirement: decoding %s payload for schema: %w", r.Family(), err)
	}

	schema := map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		schema["type"] = schemaTypeOf(v)
		return json.Marshal(schema)
	}

	props := map[string]interface{}{}
	required := make([]string, 0, len(obj))
	for k, val := range obj {
		props[k] = map[string]interface{}{"type": schemaTypeOf(val)}
		required = append(required, k)
	}
	sort.Strings(required)

	schema["type"] = "object"
	schema["properties"] = props
	schema["required"] = required
	return json.Marshal(schema)
}

func schemaTypeOf(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case nil:
		return "null"
	default:
		return "string"
	}
}

func init() {
	register("or", func(payload json.RawMessage) (Requirement, error) {
		var raw []json.RawMessage
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, err
		}
		elements := make([]Requirement, len(raw))
		for i, r := range raw {
			el, err := Unmarshal(r)
			if err != nil {
				return nil, err
			}
			elements[i] = el
		}
		return &OneOf{Elements: elements}, nil
	})
}
