package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Validator validates tool inputs against their schemas
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateInput validates input against a tool's schema
func (v *Validator) ValidateInput(schema Schema, input json.RawMessage) error {
	if schema.Type != "object" {
		return fmt.Errorf("schema type must be 'object', got '%s'", schema.Type)
	}

	var inputMap map[string]any
	if err := json.Unmarshal(input, &inputMap); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}

	// Check required fields
	for _, required := range schema.Required {
		if _, exists := inputMap[required]; !exists {
			return fmt.Errorf("missing required field: %s", required)
		}
	}

	// Validate each property
	for propName, prop := range schema.Properties {
		value, exists := inputMap[propName]
		if !exists {
			continue // Optional field not provided
		}

		if err := v.validateProperty(propName, prop, value); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateProperty(name string, prop Property, value any) error {
	if value == nil {
		return nil // Allow null values
	}

	// Type validation
	if err := v.validateType(name, prop.Type, value); err != nil {
		return err
	}

	// Enum validation
	if len(prop.Enum) > 0 {
		strVal, ok := value.(string)
		if !ok {
			return fmt.Errorf("field '%s': expected string for enum validation, got %T", name, value)
		}
		valid := false
		for _, e := range prop.Enum {
			if strVal == e {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("field '%s': value '%s' not in allowed values %v", name, strVal, prop.Enum)
		}
	}

	// Range validation for numbers
	if prop.Type == "number" || prop.Type == "integer" {
		numVal, err := toFloat64(value)
		if err != nil {
			return fmt.Errorf("field '%s': %w", name, err)
		}
		if prop.Minimum != nil && numVal < *prop.Minimum {
			return fmt.Errorf("field '%s': value %v is less than minimum %v", name, numVal, *prop.Minimum)
		}
		if prop.Maximum != nil && numVal > *prop.Maximum {
			return fmt.Errorf("field '%s': value %v exceeds maximum %v", name, numVal, *prop.Maximum)
		}
	}

	// Array items validation
	if prop.Type == "array" && prop.Items != nil {
		arr, ok := value.([]any)
		if ok {
			for i, item := range arr {
				if err := v.validateProperty(fmt.Sprintf("%s[%d]", name, i), *prop.Items, item); err != nil {
					return err
				}
			}
		}
	}

	// Nested object validation
	if prop.Type == "object" && prop.Properties != nil {
		obj, ok := value.(map[string]any)
		if ok {
			for propName, child := range prop.Properties {
				if propVal, exists := obj[propName]; exists {
					if err := v.validateProperty(fmt.Sprintf("%s.%s", name, propName), child, propVal); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

func (v *Validator) validateType(name string, expectedType string, value any) error {
	if value == nil {
		return nil
	}

	actualType := reflect.TypeOf(value)
	if actualType == nil {
		return nil
	}

	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s': expected string, got %T", name, value)
		}
	case "number":
		switch value.(type) {
		case float64, float32, int, int64, int32, json.Number:
			// Valid number types
		default:
			return fmt.Errorf("field '%s': expected number, got %T", name, value)
		}
	case "integer":
		switch v := value.(type) {
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("field '%s': expected integer, got float %v", name, v)
			}
		case int, int64, int32:
			// Valid integer types
		default:
			return fmt.Errorf("field '%s': expected integer, got %T", name, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s': expected boolean, got %T", name, value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("field '%s': expected array, got %T", name, value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("field '%s': expected object, got %T", name, value)
		}
	}

	return nil
}

func toFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}
