package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/karanuppal/halo/internal/domain"
)

//go:embed intent.cue
var schemaSource string

// Schema validates untrusted intent JSON (LLM output) against the intent
// contract before it is decoded.
//
// Thread-safety: cue values are not safe for concurrent use; Validate
// serializes callers.
type Schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// NewSchema compiles the embedded intent schema.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("intent.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile intent schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Intent"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Intent: %w", err)
	}
	return &Schema{ctx: ctx, def: def}, nil
}

// MustSchema is NewSchema for package initialization.
func MustSchema() *Schema {
	s, err := NewSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks raw against the schema and decodes it into a normalized
// Intent.
func (s *Schema) Validate(raw []byte) (domain.Intent, error) {
	if !json.Valid(raw) {
		return domain.Intent{}, fmt.Errorf("validate intent: not valid JSON")
	}

	s.mu.Lock()
	data := s.ctx.CompileBytes(raw, cue.Filename("intent.json"))
	if err := data.Err(); err != nil {
		s.mu.Unlock()
		return domain.Intent{}, fmt.Errorf("validate intent: %w", err)
	}
	err := s.def.Unify(data).Validate(cue.Concrete(true))
	s.mu.Unlock()
	if err != nil {
		return domain.Intent{}, fmt.Errorf("validate intent: %w", err)
	}

	var in domain.Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return domain.Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return in.Normalize(), nil
}
