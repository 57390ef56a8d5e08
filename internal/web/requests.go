// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/holomush/accountd/internal/auth"
)

// schemaBaseID prefixes the $id of every request schema.
const schemaBaseID = "https://holomush.dev/schemas/accountd/"

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" jsonschema:"description=Display name"`
	Username string `json:"username" jsonschema:"description=Login name (unique ignoring case)"`
	Password string `json:"password" jsonschema:"description=Plain-text password"`
	Email    string `json:"email" jsonschema:"description=Email address (unique ignoring case)"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// EmailRequest is the body of POST /auth/find-id and POST /auth/reset-request.
type EmailRequest struct {
	Email string `json:"email" jsonschema:"description=Registered email address"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code" jsonschema:"description=Six-digit code from the reset email"`
	NewPassword string `json:"newPassword"`
}

// Request schema names.
const (
	SchemaRegister      = "register"
	SchemaLogin         = "login"
	SchemaEmail         = "email"
	SchemaResetPassword = "reset-password"
)

var requestTypes = map[string]struct {
	title string
	value any
}{
	SchemaRegister:      {"Register request", &RegisterRequest{}},
	SchemaLogin:         {"Login request", &LoginRequest{}},
	SchemaEmail:         {"Email request", &EmailRequest{}},
	SchemaResetPassword: {"Reset password request", &ResetPasswordRequest{}},
}

// SchemaNames returns the request schema names in sorted order.
func SchemaNames() []string {
	names := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateSchema reflects the JSON Schema of the named request body.
func GenerateSchema(name string) ([]byte, error) {
	rt, ok := requestTypes[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("unknown request schema %q", name)
	}

	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(rt.value)
	schema.ID = jsonschema.ID(schemaBaseID + name + ".schema.json")
	schema.Title = rt.title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_MARSHAL_FAILED").With("schema", name).Wrap(err)
	}
	return data, nil
}

// validators compiles every request schema once.
type validators struct {
	once    sync.Once
	schemas map[string]*jschema.Schema
	err     error
}

var compiled validators

func compiledSchema(name string) (*jschema.Schema, error) {
	compiled.once.Do(func() {
		compiled.schemas, compiled.err = compileSchemas()
	})
	if compiled.err != nil {
		return nil, compiled.err
	}
	sch, ok := compiled.schemas[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("unknown request schema %q", name)
	}
	return sch, nil
}

func compileSchemas() (map[string]*jschema.Schema, error) {
	c := jschema.NewCompiler()
	out := make(map[string]*jschema.Schema, len(requestTypes))
	for _, name := range SchemaNames() {
		data, err := GenerateSchema(name)
		if err != nil {
			return nil, err
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		url := schemaBaseID + name + ".schema.json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		out[name] = sch
	}
	return out, nil
}

// decodeRequest validates body against the named schema and decodes it into dst.
// Missing properties are reported as "all fields are required"; any other
// violation as "invalid request body".
func decodeRequest(body []byte, name string, dst any) error {
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return auth.InvalidInput("REQUEST_MALFORMED", "request body must be a JSON object")
	}

	sch, err := compiledSchema(name)
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		var verr *jschema.ValidationError
		if errors.As(err, &verr) && missingProperty(verr) {
			return auth.InvalidInput("REQUEST_INVALID", "all fields are required")
		}
		return auth.InvalidInput("REQUEST_INVALID", "invalid request body")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return auth.InvalidInput("REQUEST_MALFORMED", "request body must be a JSON object")
	}
	return nil
}

// missingProperty reports whether any cause of verr is a required-property
// violation.
func missingProperty(verr *jschema.ValidationError) bool {
	if _, ok := verr.ErrorKind.(*kind.Required); ok {
		return true
	}
	for _, cause := range verr.Causes {
		if missingProperty(cause) {
			return true
		}
	}
	return false
}
