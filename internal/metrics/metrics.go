// Package metrics counts folded events, dispatch failures, migrated records
// and replay durations on a private prometheus registry.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "orbit"

// Metrics holds the collectors. Safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	eventsFolded     *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	migratedRecords  *prometheus.CounterVec
	replayDuration   prometheus.Histogram
	snapshotsWritten prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.eventsFolded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_folded_total",
			Help:      "Events folded into the document, by event type.",
		},
		[]string{"type"},
	)
	m.dispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Rejected dispatch batches, by error code.",
		},
		[]string{"code"},
	)
	m.migratedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrated_records_total",
			Help:      "Legacy records converted by the migration runner, by kind.",
		},
		[]string{"kind"},
	)
	m.replayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_duration_seconds",
			Help:      "Time spent loading the document from persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	m.snapshotsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_written_total",
			Help:      "Snapshots written to persistence.",
		},
	)

	m.registry.MustRegister(
		m.eventsFolded,
		m.dispatchFailures,
		m.migratedRecords,
		m.replayDuration,
		m.snapshotsWritten,
	)
	return m
}

// Registry exposes the underlying registry for exporters and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) EventFolded(eventType string) {
	if m == nil {
		return
	}
	m.eventsFolded.WithLabelValues(eventType).Inc()
}

func (m *Metrics) DispatchFailed(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "INTERNAL"
	}
	m.dispatchFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordMigrated(kind string) {
	if m == nil {
		return
	}
	m.migratedRecords.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveReplay(d time.Duration) {
	if m == nil {
		return
	}
	m.replayDuration.Observe(d.Seconds())
}

func (m *Metrics) SnapshotWritten() {
	if m == nil {
		return
	}
	m.snapshotsWritten.Inc()
}

// Summary is a point-in-time view of the counters, for CLI output.
type Summary struct {
	EventsFolded     map[string]int `json:"eventsFolded"`
	DispatchFailures map[string]int `json:"dispatchFailures"`
	MigratedRecords  map[string]int `json:"migratedRecords"`
	Replays          int            `json:"replays"`
	SnapshotsWritten int            `json:"snapshotsWritten"`
}

// TotalFolded sums EventsFolded.
func (s Summary) TotalFolded() int {
	n := 0
	for _, v := range s.EventsFolded {
		n += v
	}
	return n
}

// SortedTypes returns the keys of EventsFolded in order.
func (s Summary) SortedTypes() []string {
	keys := make([]string, 0, len(s.EventsFolded))
	for k := range s.EventsFolded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (Summary, error) {
	s := Summary{
		EventsFolded:     map[string]int{},
		DispatchFailures: map[string]int{},
		MigratedRecords:  map[string]int{},
	}
	if m == nil {
		return s, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return s, err
	}
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_events_folded_total":
			collectCounters(mf, "type", s.EventsFolded)
		case namespace + "_dispatch_failures_total":
			collectCounters(mf, "code", s.DispatchFailures)
		case namespace + "_migrated_records_total":
			collectCounters(mf, "kind", s.MigratedRecords)
		case namespace + "_replay_duration_seconds":
			for _, metric := range mf.GetMetric() {
				s.Replays += int(metric.GetHistogram().GetSampleCount())
			}
		case namespace + "_snapshots_written_total":
			for _, metric := range mf.GetMetric() {
				s.SnapshotsWritten += int(metric.GetCounter().GetValue())
			}
		}
	}
	return s, nil
}

func collectCounters(mf *dto.MetricFamily, label string, into map[string]int) {
	for _, metric := range mf.GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == label {
				into[lp.GetValue()] += int(metric.GetCounter().GetValue())
			}
		}
	}
}
