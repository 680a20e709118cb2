package config

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// Settings is the client-facing settings payload carried by
// workspace/didChangeConfiguration and initializationOptions.
type Settings struct {
	CalyxLSP CalyxSettings `json:"calyx-lsp"`
}

// CalyxSettings holds the keys editors may set under "calyx-lsp".
type CalyxSettings struct {
	LibraryPaths []string `json:"library-paths"`
}

// SettingsValidator checks settings payloads against the embedded CUE
// schema before they are allowed to replace the running configuration. A
// payload that fails here is dropped and the last good configuration
// stays in effect.
type SettingsValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewSettingsValidator creates a validator with the embedded CUE schema
func NewSettingsValidator() (*SettingsValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &SettingsValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that a raw settings payload conforms to the schema.
// Returns nil if valid, or an error naming what failed.
func (v *SettingsValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling settings to JSON: %w", err)
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling settings as CUE: %w", dataValue.Err())
	}

	settingsDef := v.schema.LookupPath(cue.ParsePath("#Settings"))
	if settingsDef.Err() != nil {
		return fmt.Errorf("looking up #Settings definition: %w", settingsDef.Err())
	}

	unified := settingsDef.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}

	return nil
}

// ValidationErrors returns every validation error for a payload, one
// string per error, or nil when the payload is valid.
func (v *SettingsValidator) ValidationErrors(data interface{}) []string {
	err := v.Validate(data)
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// ParseSettings validates a raw payload and decodes it into Settings.
func (v *SettingsValidator) ParseSettings(data interface{}) (Settings, error) {
	if err := v.Validate(data); err != nil {
		return Settings{}, err
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return Settings{}, fmt.Errorf("marshaling settings to JSON: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(jsonBytes, &s); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}
