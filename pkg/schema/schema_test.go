package schema

import "testing"

func TestValidatePasses(t *testing.T) {
	v, err := Compile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"headline"},
		"properties": map[string]interface{}{
			"headline": map[string]interface{}{"type": "string"},
		},
	})
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if err := v.Validate(map[string]interface{}{"headline": "BTC up"}); err != nil {
		t.Errorf("expected valid document, got %v", err)
	}
}

func TestValidateFailsWithPath(t *testing.T) {
	v, err := Compile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"headline"},
		"properties": map[string]interface{}{
			"headline": map[string]interface{}{"type": "string"},
		},
	})
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	err = v.Validate(map[string]interface{}{"headline": 42})
	if err == nil {
		t.Fatal("expected validation error for wrong type")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

type testStrategyConfig struct {
	Provider   string `json:"provider" jsonschema:"required,description=LLM provider tag"`
	Model      string `json:"model" jsonschema:"required"`
	MaxRetries int    `json:"max_retries,omitempty" jsonschema:"default=3"`
}

func TestDeriveConfigSchema(t *testing.T) {
	derived, err := DeriveConfigSchema[testStrategyConfig]()
	if err != nil {
		t.Fatalf("DeriveConfigSchema() error: %v", err)
	}
	if derived["type"] != "object" {
		t.Errorf("expected object schema, got %v", derived["type"])
	}
	props, ok := derived["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected properties map, got %T", derived["properties"])
	}
	if _, ok := props["provider"]; !ok {
		t.Error("expected 'provider' in derived schema properties")
	}
}
