package event

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Schema validates payloads against the CUE definitions in schema.cue.
//
// A cue.Context is not safe for concurrent use, so Check serializes on mu.
type Schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[Type]cue.Value
}

// NewSchema compiles the payload schemas.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}

	defs := make(map[Type]cue.Value, len(allTypes))
	for _, t := range allTypes {
		v := root.LookupPath(cue.ParsePath(fmt.Sprintf("payloads.%q", string(t))))
		if !v.Exists() {
			return nil, fmt.Errorf("payload schema missing for %s", t)
		}
		defs[t] = v
	}
	return &Schema{ctx: ctx, defs: defs}, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema() *Schema {
	s, err := NewSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Check validates a JSON payload against the schema for t.
func (s *Schema) Check(t Type, payload []byte) error {
	def, ok := s.defs[t]
	if !ok {
		return errs.UnknownEventType(string(t))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	val := s.ctx.CompileBytes(payload)
	if err := val.Err(); err != nil {
		return errs.Validation("parse %s payload: %v", t, err)
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return errs.Validation("%s payload: %v", t, err)
	}
	return nil
}

// CheckEvent validates the payload of e against its schema.
func (s *Schema) CheckEvent(e Event) error {
	data, err := ir.MarshalCanonical(e.Payload)
	if err != nil {
		return errs.Validation("payload is not serializable: %v", err).WithEvent(e.ID, string(e.Type))
	}
	if err := s.Check(e.Type, data); err != nil {
		var coded *errs.Error
		if errors.As(err, &coded) {
			return coded.WithEvent(e.ID, string(e.Type))
		}
		return err
	}
	return nil
}
