package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// DeriveConfigSchema generates a config_schema (SPEC_FULL.md §4.2.e) from a
// strategy constructor's parameter struct T, mapping Go field types to
// string/integer/number/boolean/object/array and treating defaultless fields
// as required. T's fields should carry `json` tags for naming and optionally
// `jsonschema:"required,description=...,default=..."` tags.
func DeriveConfigSchema[T any]() (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	reflected := reflector.Reflect(new(T))

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal reflected config schema: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("schema: unmarshal reflected config schema: %w", err)
	}

	delete(out, "$schema")
	delete(out, "$id")

	if props, ok := out["properties"].(map[string]interface{}); ok {
		required, _ := out["required"].([]interface{})
		seen := map[string]bool{}
		for _, r := range required {
			seen[fmt.Sprint(r)] = true
		}
		for name, p := range props {
			if pm, _ := p.(map[string]interface{}); pm["default"] == nil && !seen[name] {
				required = append(required, name)
			}
		}
		if len(required) > 0 {
			out["required"] = required
		}
	}

	return out, nil
}
