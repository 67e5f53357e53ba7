package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ValidateDocument checks a decoded configuration document (as produced
// by encoding/json) against the embedded schema. Unknown keys and values
// of the wrong type are reported as ValidationErrors.
func ValidateDocument(doc any) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	err = sch.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var errs ValidationErrors
	collectSchemaErrors(verr, &errs)
	if len(errs) == 0 {
		errs = append(errs, ValidationError{Field: "(root)", Message: verr.Message})
	}
	return errs
}

func collectSchemaErrors(e *jsonschema.ValidationError, out *ValidationErrors) {
	if len(e.Causes) == 0 {
		field := e.InstanceLocation
		if field == "" {
			field = "(root)"
		}
		*out = append(*out, ValidationError{Field: field, Message: e.Message})
		return
	}
	for _, c := range e.Causes {
		collectSchemaErrors(c, out)
	}
}
