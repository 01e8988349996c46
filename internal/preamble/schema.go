// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package preamble

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaID is the $id of the generated preamble schema.
const SchemaID = "https://holomush.dev/schemas/preamble.schema.json"

var (
	compiled     *jschema.Schema
	compiledErr  error
	compiledOnce sync.Once
)

// GenerateSchema generates a JSON Schema from the Preamble struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Preamble{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Plugin Handshake Preamble"
	schema.Description = "Single-line JSON document a plugin emits on startup"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Wrapf(err, "marshal schema")
	}
	return data, nil
}

// Validate checks a preamble document against the generated schema.
func Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code("INVALID_PREAMBLE").Errorf("preamble is empty")
	}
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.Code("INVALID_PREAMBLE").Wrapf(err, "invalid JSON")
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code("INVALID_PREAMBLE").Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compiledErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compiledErr = oops.Wrapf(err, "parse schema JSON")
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("preamble.schema.json", doc); err != nil {
			compiledErr = oops.Wrapf(err, "add schema resource")
			return
		}
		compiled, compiledErr = c.Compile("preamble.schema.json")
		if compiledErr != nil {
			compiledErr = oops.Wrapf(compiledErr, "compile schema")
		}
	})
	return compiled, compiledErr
}
