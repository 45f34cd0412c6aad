package model

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed ruleset.cue
var rulesetSchemaSource string

// rulesetSchema holds the compiled #Ruleset definition.
// cue.Context is not safe for concurrent use, so every use holds mu.
type rulesetSchema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
	err error
}

var (
	schemaOnce sync.Once
	schema     rulesetSchema
)

func loadSchema() *rulesetSchema {
	schemaOnce.Do(func() {
		schema.ctx = cuecontext.New()
		v := schema.ctx.CompileString(rulesetSchemaSource, cue.Filename("ruleset.cue"))
		if err := v.Err(); err != nil {
			schema.err = fmt.Errorf("compile ruleset schema: %w", err)
			return
		}
		schema.def = v.LookupPath(cue.ParsePath("#Ruleset"))
		if err := schema.def.Err(); err != nil {
			schema.err = fmt.Errorf("lookup #Ruleset: %w", err)
		}
	})
	return &schema
}

// ValidationError reports a ruleset that violates the embedded schema.
type ValidationError struct {
	// Details is the CUE error text, one violation per line.
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid ruleset: " + e.Details
}

// ValidateRuleset checks r against the #Ruleset schema in ruleset.cue.
//
// Returns *ValidationError when a constraint is violated, or a plain error if
// the schema itself cannot be loaded.
func ValidateRuleset(r Ruleset) error {
	s := loadSchema()
	if s.err != nil {
		return s.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.Encode(r)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode ruleset: %w", err)
	}

	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}
