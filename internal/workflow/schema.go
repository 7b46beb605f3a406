package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// templateSchema constrains custom workflow templates before they are
// unmarshalled, so malformed step shapes are rejected with field-level
// messages instead of zero-valued structs.
const templateSchema = `{
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 3},
    "description": {"type": "string"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["action"],
        "properties": {
          "action": {
            "type": "string",
            "enum": ["generate", "upscale", "remove_background", "relight", "style_transfer"]
          },
          "generate": {
            "type": "object",
            "properties": {
              "model": {"type": "string", "enum": ["mystic", "imagen3", "flux-dev", "classic-fast", "auto"]},
              "style": {"type": "string"}
            },
            "additionalProperties": false
          },
          "upscale": {
            "type": "object",
            "properties": {"factor": {"type": "integer", "enum": [2, 4, 8]}},
            "additionalProperties": false
          },
          "relight": {
            "type": "object",
            "properties": {"style": {"type": "string"}},
            "additionalProperties": false
          },
          "style_transfer": {
            "type": "object",
            "required": ["style_url"],
            "properties": {"style_url": {"type": "string", "format": "uri"}},
            "additionalProperties": false
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compiledTemplateSchema = gojsonschema.NewStringLoader(templateSchema)

// ValidateTemplateJSON checks a raw template body against the schema.
func ValidateTemplateJSON(raw []byte) error {
	result, err := gojsonschema.Validate(compiledTemplateSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("template is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}
