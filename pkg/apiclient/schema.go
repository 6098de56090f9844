package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const userSchemaURL = "user.json"

const userSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "email"],
  "properties": {
    "name":  {"type": "string", "minLength": 1},
    "email": {"type": "string", "format": "email"}
  }
}`

var (
	userSchemaOnce     sync.Once
	userSchemaCompiled *jsonschema.Schema
	userSchemaErr      error
)

func compiledUserSchema() (*jsonschema.Schema, error) {
	userSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(userSchemaURL, strings.NewReader(userSchema)); err != nil {
			userSchemaErr = fmt.Errorf("add user schema: %w", err)
			return
		}
		userSchemaCompiled, userSchemaErr = compiler.Compile(userSchemaURL)
	})
	return userSchemaCompiled, userSchemaErr
}

// ValidateUserPayload checks a create-user payload before it is sent.
// Any JSON-marshalable value is accepted; failures wrap ErrInvalidPayload.
func ValidateUserPayload(payload any) error {
	schema, err := compiledUserSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
