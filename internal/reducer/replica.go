package reducer

import (
	"fmt"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// Replicated is a document that can absorb local events and remote copies.
type Replicated interface {
	Document() *document.Document
	Fold(e event.Event) (Replicated, error)
	Merge(other Replicated) (Replicated, error)
}

// Replica pairs a document with the registry that folds into it.
// Values are immutable; Fold and Merge return new replicas.
type Replica struct {
	doc      *document.Document
	registry *Registry
}

var _ Replicated = (*Replica)(nil)

// NewReplica validates doc and wraps it. A nil doc starts empty.
func NewReplica(registry *Registry, doc *document.Document) (*Replica, error) {
	if doc == nil {
		doc = document.New()
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("new replica: %w", err)
	}
	return &Replica{doc: doc, registry: registry}, nil
}

func (r *Replica) Document() *document.Document { return r.doc }

func (r *Replica) Fold(e event.Event) (Replicated, error) {
	doc, err := r.registry.Fold(r.doc, e)
	if err != nil {
		return nil, err
	}
	return &Replica{doc: doc, registry: r.registry}, nil
}

func (r *Replica) Merge(other Replicated) (Replicated, error) {
	doc, err := r.doc.Merge(other.Document())
	if err != nil {
		return nil, err
	}
	return &Replica{doc: doc, registry: r.registry}, nil
}
