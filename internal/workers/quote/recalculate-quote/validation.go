// internal/workers/quote/recalculate-quote/validation.go
package recalculatequote

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const inputSchema = `{
	"type": "object",
	"required": ["quoteId", "parts"],
	"properties": {
		"quoteId": {"type": "string", "minLength": 1},
		"climateZone": {"type": "string", "enum": ["I", "II", "III", ""]},
		"indoorTemp": {"type": "number", "minimum": -10, "maximum": 40},
		"indoorRh": {"type": "number", "exclusiveMinimum": 0, "maximum": 100},
		"crewSize": {"type": "integer", "minimum": 0, "maximum": 10},
		"parts": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["partId", "partType", "area"],
				"properties": {
					"partId": {"type": "string", "minLength": 1},
					"partType": {"type": "string", "enum": ["yttervagg", "tak", "golv", "innervagg"]},
					"area": {"type": "number", "exclusiveMinimum": 0},
					"targetThicknessMm": {"type": "number", "minimum": 0, "maximum": 1000}
				}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(inputSchema)

// validateInput checks the raw job variables against the input schema
// before any physics runs.
func validateInput(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid input: %s", strings.Join(problems, "; "))
}
