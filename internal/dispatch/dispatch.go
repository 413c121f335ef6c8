// Package dispatch validates event batches and folds them through the
// reducer registry.
//
// A batch is all or nothing: every event is validated before any is folded,
// and the first failing fold aborts the rest. The caller's document is never
// modified.
package dispatch

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
)

// Dispatcher is stateless apart from its collaborators and safe for
// concurrent use.
type Dispatcher struct {
	registry *reducer.Registry
	schema   *event.Schema
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: nop.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics sets the metrics sink. Default: none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New builds a dispatcher. A nil schema skips payload schema checks.
func New(registry *reducer.Registry, schema *event.Schema, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		schema:   schema,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry events are folded through.
func (d *Dispatcher) Registry() *reducer.Registry { return d.registry }

// Validate runs the structural, schema and registry checks on one event.
func (d *Dispatcher) Validate(e event.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, ok := d.registry.Lookup(e.Type); !ok {
		return errs.UnknownEventType(string(e.Type)).WithEvent(e.ID, string(e.Type))
	}
	if d.schema != nil {
		if err := d.schema.CheckEvent(e); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch validates the whole batch, then folds it in the given order.
func (d *Dispatcher) Dispatch(doc *document.Document, events []event.Event) (*document.Document, error) {
	for _, e := range events {
		if err := d.Validate(e); err != nil {
			d.fail(e, err)
			return nil, err
		}
	}
	return d.fold(doc, events)
}

// Fold folds events without validating them. The replay loader uses it for
// events that were validated before they were persisted.
func (d *Dispatcher) Fold(doc *document.Document, events []event.Event) (*document.Document, error) {
	return d.fold(doc, events)
}

// fold runs the batch on a draft, so each touched section is copied once
// per batch rather than once per event.
func (d *Dispatcher) fold(doc *document.Document, events []event.Event) (*document.Document, error) {
	if len(events) == 0 {
		return doc, nil
	}
	doc = doc.Draft()
	for _, e := range events {
		next, err := d.registry.Fold(doc, e)
		if err != nil {
			d.fail(e, err)
			return nil, err
		}
		doc = next
		d.metrics.EventFolded(string(e.Type))
		d.logger.Debug("event folded",
			zap.String("event_id", e.ID),
			zap.String("type", string(e.Type)),
			zap.String("entity_id", e.EntityID),
		)
	}
	return doc.Done(), nil
}

func (d *Dispatcher) fail(e event.Event, err error) {
	code := errs.CodeOf(err)
	d.metrics.DispatchFailed(string(code))
	d.logger.Info("dispatch rejected",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("code", string(code)),
		zap.Error(err),
	)
}

// Result is the outcome of Run, shaped for UI collaborators.
type Result struct {
	Success  bool               `json:"success"`
	Document *document.Document `json:"-"`
	Err      error              `json:"-"`

	// Error is Err flattened for serialization.
	Error *errs.Error `json:"error,omitempty"`
}

// Run is Dispatch with the error folded into a Result.
func (d *Dispatcher) Run(doc *document.Document, events []event.Event) Result {
	out, err := d.Dispatch(doc, events)
	if err != nil {
		return Failure(err)
	}
	return Result{Success: true, Document: out}
}

// Failure wraps err in a failed Result.
func Failure(err error) Result {
	res := Result{Err: err}
	var coded *errs.Error
	if errors.As(err, &coded) {
		res.Error = coded
	} else {
		res.Error = &errs.Error{Message: err.Error()}
	}
	return res
}
