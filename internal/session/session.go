// Package session is the facade UI and CLI collaborators use: it loads a
// device's document from persistence, migrates legacy records, dispatches
// new events, writes snapshots and merges documents from other devices.
//
// Live state always equals replay state. A batch that sorts before the last
// folded event is folded together with the whole log from the snapshot
// base, in (timestamp, id) order.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/dispatch"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/migration"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/replay"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/timeline"
)

// DefaultSnapshotEvery is the number of dispatched events between
// automatic snapshots.
const DefaultSnapshotEvery = 200

// Session owns one device's in-memory document. Methods are safe for
// concurrent use; calls are serialized.
type Session struct {
	mu sync.Mutex

	store      replay.Persistence
	dispatcher *dispatch.Dispatcher
	deviceID   string

	logger        *zap.Logger
	level         *zap.AtomicLevel
	metrics       *metrics.Metrics
	schema        *event.Schema
	registry      *reducer.Registry
	snapshotEvery int
	skipMigration bool
	now           func() time.Time

	doc    *document.Document
	base   *document.Document
	baseAt string
	log    []event.Event
	ids    map[string]struct{}
	issued string

	sinceSnapshot int
	report        *migration.Report
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithLevel passes the logger's level to the replay loader.
func WithLevel(atom zap.AtomicLevel) Option {
	return func(s *Session) { s.level = &atom }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSchema enables payload schema checks on dispatch.
func WithSchema(schema *event.Schema) Option {
	return func(s *Session) { s.schema = schema }
}

// WithRegistry replaces the default reducer registry.
func WithRegistry(r *reducer.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithSnapshotEvery sets the automatic snapshot interval. Zero disables
// automatic snapshots.
func WithSnapshotEvery(n int) Option {
	return func(s *Session) { s.snapshotEvery = n }
}

// WithoutMigration opens the session without migrating legacy records.
func WithoutMigration() Option {
	return func(s *Session) { s.skipMigration = true }
}

// WithClock sets the time source for NewEvent and Merge.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Open loads the document from store and migrates legacy records,
// appending the synthetic events to store.
func Open(ctx context.Context, store replay.Persistence, deviceID string, opts ...Option) (*Session, error) {
	s := &Session{
		store:         store,
		deviceID:      deviceID,
		logger:        zap.NewNop(),
		registry:      reducer.Default(),
		snapshotEvery: DefaultSnapshotEvery,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = dispatch.New(s.registry, s.schema,
		dispatch.WithLogger(s.logger),
		dispatch.WithMetrics(s.metrics),
	)

	loadOpts := []replay.Option{replay.WithLogger(s.logger), replay.WithMetrics(s.metrics)}
	if s.level != nil {
		loadOpts = append(loadOpts, replay.WithLevel(*s.level))
	}
	st, err := replay.NewLoader(s.dispatcher, loadOpts...).LoadState(ctx, store)
	if err != nil {
		return nil, err
	}
	s.doc, s.base, s.baseAt = st.Document, st.Base, st.BaseAt
	s.log = st.Events
	s.ids = make(map[string]struct{}, len(s.log))
	for _, e := range s.log {
		s.ids[e.ID] = struct{}{}
	}

	if !s.skipMigration {
		if err := s.migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) migrate(ctx context.Context) error {
	runner := migration.NewRunner(s.dispatcher,
		migration.WithLogger(s.logger),
		migration.WithMetrics(s.metrics),
	)
	doc, rep, err := runner.Run(ctx, s.doc, s.store, s.deviceID)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.doc = doc
	s.report = rep
	if len(rep.Events) == 0 {
		return nil
	}

	s.record(rep.Events)

	// Synthetic events carry legacy timestamps and may sort before the
	// snapshot, where replay would never see them.
	if s.baseAt != "" && slices.ContainsFunc(rep.Events, s.coveredBySnapshot) {
		if err := s.snapshot(ctx); err != nil {
			return fmt.Errorf("snapshot after migration: %w", err)
		}
	}
	return nil
}

// coveredBySnapshot reports whether e is at or before the snapshot base,
// where replay would skip it.
func (s *Session) coveredBySnapshot(e event.Event) bool {
	return s.baseAt != "" && document.CompareTime(e.Timestamp, s.baseAt) <= 0
}

// record merges events into the ordered log.
func (s *Session) record(events []event.Event) {
	for _, e := range events {
		s.ids[e.ID] = struct{}{}
	}
	s.log = append(s.log, events...)
	event.Sort(s.log)
}

// Document returns the current document.
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Events returns the ordered event log.
func (s *Session) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.log)
}

// MigrationReport returns the report of the migration run at Open, or nil
// when migration was skipped.
func (s *Session) MigrationReport() *migration.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// DeviceID returns the id stamped on events this session creates.
func (s *Session) DeviceID() string { return s.deviceID }

// NewEvent builds an event for payload stamped with this device and a
// timestamp later than every event the session has seen or issued.
func (s *Session) NewEvent(entityID string, p event.Payload) event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := event.Timestamp(s.now())
	if last := document.LaterTime(s.lastTimestamp(), s.issued); last != "" && document.CompareTime(ts, last) <= 0 {
		ts = nextTimestamp(last)
	}
	s.issued = ts
	return event.New(entityID, p, ts, s.deviceID)
}

func nextTimestamp(last string) string {
	t, err := time.Parse(time.RFC3339Nano, last)
	if err != nil {
		return last
	}
	return event.Timestamp(t.Add(time.Millisecond))
}

func (s *Session) lastTimestamp() string {
	if len(s.log) == 0 {
		return s.baseAt
	}
	return document.LaterTime(s.log[len(s.log)-1].Timestamp, s.baseAt)
}

// Dispatch validates and folds events, then persists them in one append.
// Nothing is persisted or changed when any event fails.
func (s *Session) Dispatch(ctx context.Context, events []event.Event) dispatch.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(events) == 0 {
		return dispatch.Result{Success: true, Document: s.doc}
	}
	if err := ctx.Err(); err != nil {
		return dispatch.Failure(err)
	}

	batch := slices.Clone(events)
	event.Sort(batch)

	seen := make(map[string]struct{}, len(batch))
	for _, e := range batch {
		if _, dup := s.ids[e.ID]; dup {
			return dispatch.Failure(errs.AlreadyExists("event", e.ID).WithEvent(e.ID, string(e.Type)))
		}
		if _, dup := seen[e.ID]; dup {
			return dispatch.Failure(errs.Validation("event id %s appears twice in batch", e.ID).WithEvent(e.ID, string(e.Type)))
		}
		seen[e.ID] = struct{}{}
		if e.Timestamp != "" && s.coveredBySnapshot(e) {
			return dispatch.Failure(errs.Validation("event at %s precedes snapshot at %s", e.Timestamp, s.baseAt).WithEvent(e.ID, string(e.Type)))
		}
	}

	var (
		next *document.Document
		err  error
	)
	if len(s.log) == 0 || event.Less(s.log[len(s.log)-1], batch[0]) {
		next, err = s.dispatcher.Dispatch(s.doc, batch)
	} else {
		// The batch interleaves with folded history.
		all := append(slices.Clone(s.log), batch...)
		event.Sort(all)
		s.logger.Debug("refolding out-of-order batch",
			zap.Int("batch", len(batch)),
			zap.Int("log", len(all)),
		)
		next, err = s.dispatcher.Dispatch(s.base, replay.After(all, s.baseAt))
	}
	if err != nil {
		return dispatch.Failure(err)
	}

	if err := replay.AppendAll(ctx, s.store, batch); err != nil {
		return dispatch.Failure(fmt.Errorf("persist batch: %w", err))
	}

	s.doc = next
	s.record(batch)
	s.sinceSnapshot += len(batch)

	if s.snapshotEvery > 0 && s.sinceSnapshot >= s.snapshotEvery {
		if err := s.snapshot(ctx); err != nil {
			s.logger.Warn("automatic snapshot failed", zap.Error(err))
		}
	}
	return dispatch.Result{Success: true, Document: next}
}

// BuildTimeline returns the chronological history of one entity.
func (s *Session) BuildTimeline(kind document.Kind, id string) []timeline.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeline.Build(s.doc, s.log, kind, id)
}

// Snapshot writes the current document, tagged with the last event
// timestamp. It does nothing when no event has been folded.
func (s *Session) Snapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(ctx)
}

func (s *Session) snapshot(ctx context.Context) error {
	ts := s.lastTimestamp()
	if ts == "" {
		return nil
	}
	return s.writeSnapshot(ctx, s.doc, ts)
}

// writeSnapshot tags doc with ts in SnapshotLayout.
func (s *Session) writeSnapshot(ctx context.Context, doc *document.Document, ts string) error {
	ts = event.SnapshotTimestamp(ts)
	if err := s.store.WriteSnapshot(ctx, doc, ts); err != nil {
		return err
	}
	s.base, s.baseAt = doc, ts
	s.sinceSnapshot = 0
	s.metrics.SnapshotWritten()
	s.logger.Info("snapshot written", zap.String("timestamp", ts))
	return nil
}

// Merge folds another device's document into this one and persists the
// result as a snapshot, since the merged state has no local event history.
func (s *Session) Merge(ctx context.Context, other *document.Document) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := reducer.NewReplica(s.registry, s.doc)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	remote, err := reducer.NewReplica(s.registry, other)
	if err != nil {
		return nil, fmt.Errorf("merge: remote document: %w", err)
	}
	out, err := local.Merge(remote)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	merged := out.Document()

	ts := s.lastTimestamp()
	if ts == "" {
		ts = event.Timestamp(s.now())
	}
	if err := s.writeSnapshot(ctx, merged, ts); err != nil {
		return nil, fmt.Errorf("persist merge: %w", err)
	}
	s.doc = merged
	return merged, nil
}
