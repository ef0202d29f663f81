// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the universe document schema.
const SchemaID = "https://loreweave.dev/schemas/universe.schema.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jschema.Schema
	compileErr     error
)

var ulidType = reflect.TypeOf(ulid.ULID{})

// GenerateSchema returns the JSON Schema of the stored entity document.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == ulidType {
				return &jsonschema.Schema{Type: "string", Pattern: "^[0-9A-HJKMNP-TV-Z]{26}$"}
			}
			return nil
		},
	}
	schema := r.Reflect(&Collections{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Loreweave Universe Entities"
	schema.Description = "Entity collections stored with each universe"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateDocument checks an encoded entity document, JSON or YAML,
// against the schema.
func ValidateDocument(data []byte) error {
	_, err := validDocument(data)
	return err
}

// DecodeDocument validates an encoded entity document, JSON or YAML, and
// decodes it into Collections.
func DecodeDocument(data []byte) (*Collections, error) {
	doc, err := validDocument(data)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID_DOCUMENT").With("operation", "encode").Wrap(err)
	}
	var c Collections
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, oops.Code("SCHEMA_INVALID_DOCUMENT").With("operation", "decode collections").Wrap(err)
	}
	return &c, nil
}

func validDocument(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, oops.Code("SCHEMA_INVALID_DOCUMENT").Errorf("document is empty")
	}

	// YAML is a superset of JSON, so one decoder serves both.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("SCHEMA_INVALID_DOCUMENT").With("operation", "decode").Wrap(err)
	}
	doc, err := toJSONTypes(doc)
	if err != nil {
		return nil, err
	}

	sch, err := documentSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, oops.Code("SCHEMA_VALIDATION_FAILED").Wrap(err)
	}
	return doc, nil
}

// ValidateCollections checks c against the schema before it is stored.
func ValidateCollections(c *Collections) error {
	data, err := json.Marshal(c)
	if err != nil {
		return oops.Code("SCHEMA_INVALID_DOCUMENT").With("operation", "encode").Wrap(err)
	}
	return ValidateDocument(data)
}

func documentSchema() (*jschema.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compileErr = err
			return
		}
		parsed, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("universe.schema.json", parsed); err != nil {
			compileErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		compiledSchema, compileErr = c.Compile("universe.schema.json")
		if compileErr != nil {
			compileErr = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(compileErr)
		}
	})
	return compiledSchema, compileErr
}

// toJSONTypes round-trips a YAML-decoded value through JSON so that
// numbers and maps have the types the validator expects.
func toJSONTypes(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID_DOCUMENT").With("operation", "normalize").Wrap(err)
	}
	out, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID_DOCUMENT").With("operation", "normalize").Wrap(err)
	}
	return out, nil
}
