package profile

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed profile.schema.json
var schemaJSON []byte

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("profile: invalid embedded schema: %v", err))
	}
	return s
}

// ValidateDocument checks a persisted profile against the embedded schema.
func ValidateDocument(raw []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("profile: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return fmt.Errorf("profile: schema validation failed")
	}
	return fmt.Errorf("profile: schema validation failed: %s", result.Errors()[0])
}
