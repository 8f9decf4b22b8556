// Package validator checks exported JSON against embedded CUE schemas.
//
// Every JSON export (nested documentation and fact tables) passes through a
// validator before it is written. A failure is a bug in the producer and is
// reported as a hard error, never worked around.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed facts_schema.cue doc_schema.cue
var schemaFS embed.FS

// schemaValidator unifies JSON data with one definition of a compiled schema.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type schemaValidator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
	def    string
}

func newSchemaValidator(file, def string) (*schemaValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	schema := ctx.CompileBytes(schemaBytes, cue.Filename(file))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, schema.Err())
	}

	if d := schema.LookupPath(cue.ParsePath(def)); d.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", def, d.Err())
	}

	return &schemaValidator{ctx: ctx, schema: schema, def: def}, nil
}

func (v *schemaValidator) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	return v.schema.LookupPath(cue.ParsePath(v.def)).Unify(dataValue), nil
}

// ValidateJSON validates JSON bytes against the definition.
func (v *schemaValidator) ValidateJSON(jsonBytes []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	unified, err := v.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", v.def, err)
	}
	return nil
}

// Validate marshals data to JSON and validates it.
func (v *schemaValidator) Validate(data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidationErrors returns one message per schema violation, or nil.
func (v *schemaValidator) ValidationErrors(data any) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	unified, err := v.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// FactsValidator validates relational fact tables against #FactTables.
type FactsValidator struct {
	*schemaValidator
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	v, err := newSchemaValidator("facts_schema.cue", "#FactTables")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{v}, nil
}

// DeltaValidator validates fact deltas against #FactDelta.
type DeltaValidator struct {
	*schemaValidator
}

// NewDeltaValidator creates a validator for fact deltas.
func NewDeltaValidator() (*DeltaValidator, error) {
	v, err := newSchemaValidator("facts_schema.cue", "#FactDelta")
	if err != nil {
		return nil, err
	}
	return &DeltaValidator{v}, nil
}

// DocValidator validates a documentation library against #Library.
type DocValidator struct {
	*schemaValidator
}

// NewDocValidator creates a validator for nested documentation output.
func NewDocValidator() (*DocValidator, error) {
	v, err := newSchemaValidator("doc_schema.cue", "#Library")
	if err != nil {
		return nil, err
	}
	return &DocValidator{v}, nil
}

var (
	shared     struct{ facts, delta, doc *schemaValidator }
	sharedErr  error
	sharedOnce sync.Once
)

func sharedValidators() error {
	sharedOnce.Do(func() {
		if shared.facts, sharedErr = newSchemaValidator("facts_schema.cue", "#FactTables"); sharedErr != nil {
			return
		}
		if shared.delta, sharedErr = newSchemaValidator("facts_schema.cue", "#FactDelta"); sharedErr != nil {
			return
		}
		shared.doc, sharedErr = newSchemaValidator("doc_schema.cue", "#Library")
	})
	return sharedErr
}

// ValidateFacts validates fact tables with a process-wide validator.
func ValidateFacts(tables any) error {
	if err := sharedValidators(); err != nil {
		return err
	}
	return shared.facts.Validate(tables)
}

// ValidateDelta validates a fact delta with a process-wide validator.
func ValidateDelta(delta any) error {
	if err := sharedValidators(); err != nil {
		return err
	}
	return shared.delta.Validate(delta)
}

// ValidateDoc validates a documentation library with a process-wide validator.
func ValidateDoc(lib any) error {
	if err := sharedValidators(); err != nil {
		return err
	}
	return shared.doc.Validate(lib)
}
