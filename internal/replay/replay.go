// Package replay rebuilds the current document from persistence: the
// latest snapshot plus every later event, folded in (timestamp, id) order.
package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/dispatch"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/logging"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
)

// Persistence is the storage collaborator. ReadLatestSnapshot returns nil
// when no snapshot exists.
type Persistence interface {
	AppendEvent(ctx context.Context, rec event.Record) error
	ReadAllEvents(ctx context.Context) ([]event.Record, error)
	ReadLatestSnapshot(ctx context.Context) (*event.SnapshotRecord, error)
	WriteSnapshot(ctx context.Context, doc *document.Document, timestamp string) error
}

// Appender appends single event records.
type Appender interface {
	AppendEvent(ctx context.Context, rec event.Record) error
}

// BatchAppender is implemented by stores that append several records as
// one atomic write.
type BatchAppender interface {
	AppendEvents(ctx context.Context, recs []event.Record) error
}

// AppendAll persists events as one unit when app implements BatchAppender,
// and one record at a time otherwise. Without batch support a failure can
// leave the records before it persisted.
func AppendAll(ctx context.Context, app Appender, events []event.Event) error {
	recs := make([]event.Record, 0, len(events))
	for _, e := range events {
		rec, err := e.Record()
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.ID, err)
		}
		recs = append(recs, rec)
	}
	if batch, ok := app.(BatchAppender); ok {
		return batch.AppendEvents(ctx, recs)
	}
	for _, rec := range recs {
		if err := app.AppendEvent(ctx, rec); err != nil {
			return fmt.Errorf("persist %s: %w", rec.ID, err)
		}
	}
	return nil
}

// State is the outcome of a load.
type State struct {
	// Document is the current document.
	Document *document.Document

	// Events is the full log in (timestamp, id) order, including events
	// covered by the snapshot.
	Events []event.Event

	// Base is the snapshot document, or an empty document when there is
	// none. BaseAt is the snapshot timestamp ("" without a snapshot).
	Base   *document.Document
	BaseAt string

	// Folded counts the events applied on top of Base.
	Folded int
}

// Loader replays persistence into a document.
type Loader struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
	level      *zap.AtomicLevel
	metrics    *metrics.Metrics
}

// Option configures a Loader.
type Option func(*Loader)

func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithLevel hands the loader the level of its logger so bulk replay can
// run at warn.
func WithLevel(atom zap.AtomicLevel) Option {
	return func(ld *Loader) { ld.level = &atom }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ld *Loader) { ld.metrics = m }
}

func NewLoader(d *dispatch.Dispatcher, opts ...Option) *Loader {
	ld := &Loader{dispatcher: d, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load returns the current document and the ordered event log.
func (ld *Loader) Load(ctx context.Context, p Persistence) (*document.Document, []event.Event, error) {
	st, err := ld.LoadState(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return st.Document, st.Events, nil
}

// LoadState is Load with the snapshot base exposed.
func (ld *Loader) LoadState(ctx context.Context, p Persistence) (*State, error) {
	return ld.load(ctx, p, true)
}

// Rebuild ignores snapshots and folds the whole log from an empty document.
func (ld *Loader) Rebuild(ctx context.Context, p Persistence) (*State, error) {
	return ld.load(ctx, p, false)
}

func (ld *Loader) load(ctx context.Context, p Persistence, useSnapshot bool) (*State, error) {
	start := time.Now()

	st := &State{Base: document.New()}
	if useSnapshot {
		snap, err := p.ReadLatestSnapshot(ctx)
		if err != nil {
			return nil, errs.Load("read latest snapshot", err)
		}
		if snap != nil {
			base, err := document.Decode([]byte(snap.Doc))
			if err != nil {
				return nil, errs.Load("decode snapshot at "+snap.Timestamp, err)
			}
			st.Base, st.BaseAt = base, snap.Timestamp
		}
	}

	events, err := ReadEvents(ctx, p)
	if err != nil {
		return nil, err
	}
	st.Events = events

	pending := events
	if st.BaseAt != "" {
		pending = After(events, st.BaseAt)
	}

	if ld.level != nil {
		restore := logging.Quiet(*ld.level)
		st.Document, err = ld.dispatcher.Fold(st.Base, pending)
		restore()
	} else {
		st.Document, err = ld.dispatcher.Fold(st.Base, pending)
	}
	if err != nil {
		return nil, errs.Load("replay event log", err)
	}
	st.Folded = len(pending)

	elapsed := time.Since(start)
	ld.metrics.ObserveReplay(elapsed)
	ld.logger.Info("document loaded",
		zap.Int("events", len(events)),
		zap.Int("folded", st.Folded),
		zap.String("snapshot", st.BaseAt),
		zap.Duration("elapsed", elapsed),
	)
	return st, nil
}

// ReadEvents reads and decodes the whole log, sorted by (timestamp, id).
func ReadEvents(ctx context.Context, p Persistence) ([]event.Event, error) {
	recs, err := p.ReadAllEvents(ctx)
	if err != nil {
		return nil, errs.Load("read events", err)
	}
	events := make([]event.Event, 0, len(recs))
	for _, rec := range recs {
		e, err := event.FromRecord(rec)
		if err != nil {
			return nil, errs.Load("decode event "+rec.ID, err)
		}
		events = append(events, e)
	}
	event.Sort(events)
	return events, nil
}

// After returns the suffix of sorted events strictly newer than ts.
func After(events []event.Event, ts string) []event.Event {
	for i, e := range events {
		if document.CompareTime(e.Timestamp, ts) > 0 {
			return events[i:]
		}
	}
	return nil
}
