// Package schema checks candidate messages against the VLP JSON Schema.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed vlp-1.1.json
var embedded []byte

const resourceName = "vlp-1.1.json"

// Validator holds a schema compiled once and reused for every check.
type Validator struct {
	compiled *jsonschema.Schema
}

// New compiles the embedded VLP/1.1 schema.
func New() (*Validator, error) {
	return FromBytes(embedded)
}

// FromFile compiles a schema from disk, for deployments that override the
// embedded copy.
func FromFile(path string) (*Validator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return FromBytes(raw)
}

// FromBytes compiles a Draft-07 schema. A malformed schema is a fatal
// configuration error for the caller, never silently ignored.
func FromBytes(raw []byte) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks a decoded JSON value against the schema. On failure it
// returns an ordered list of path+message strings. The candidate is never
// mutated.
func (v *Validator) Validate(candidate any) (bool, []string) {
	err := v.compiled.Validate(candidate)
	if err == nil {
		return true, nil
	}
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return false, flatten(ve)
	}
	return false, []string{err.Error()}
}

// flatten converts the nested validation error into leaf-level diagnostics.
func flatten(ve *jsonschema.ValidationError) []string {
	basic := ve.BasicOutput()
	out := make([]string, 0, len(basic.Errors))
	for _, unit := range basic.Errors {
		if strings.HasPrefix(unit.Error, "doesn't validate with") {
			continue
		}
		loc := unit.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, fmt.Sprintf("%s: %s", loc, unit.Error))
	}
	if len(out) == 0 {
		out = append(out, ve.Error())
	}
	return out
}
