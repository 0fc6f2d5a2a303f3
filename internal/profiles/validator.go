package profiles

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/motor-profile-v1.json
var motorProfileSchemaJSON string

//go:embed schema/device-import-v1.json
var deviceImportSchemaJSON string

type Validator struct {
	profileSchema *jsonschema.Schema
	importSchema  *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	profileSchema, err := compileSchema("motor-profile-v1.json", motorProfileSchemaJSON)
	if err != nil {
		return nil, err
	}
	importSchema, err := compileSchema("device-import-v1.json", deviceImportSchemaJSON)
	if err != nil {
		return nil, err
	}

	return &Validator{
		profileSchema: profileSchema,
		importSchema:  importSchema,
	}, nil
}

func compileSchema(name, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// ValidateProfile checks a YAML motor profile against the schema. The
// document is round-tripped through JSON because the schema library only
// understands json.Unmarshal value shapes.
func (v *Validator) ValidateProfile(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to convert profile: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to convert profile: %w", err)
	}

	if err := v.profileSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// ValidateImport checks a JSON device-import payload against the schema.
func (v *Validator) ValidateImport(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.importSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
