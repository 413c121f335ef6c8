package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
)

// ReadAllEvents returns every event record ordered by timestamp, then id.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ReadAllEvents(ctx context.Context) ([]event.Record, error) {
	return s.queryEvents(ctx, `
		SELECT id, type, entity_id, payload, timestamp, device_id
		FROM events
		ORDER BY timestamp ASC, id COLLATE BINARY ASC
	`)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]event.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	recs := []event.Record{}
	for rows.Next() {
		var (
			rec      event.Record
			entityID sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &entityID, &rec.Payload, &rec.Timestamp, &rec.DeviceID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if entityID.Valid {
			id := entityID.String
			rec.EntityID = &id
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return recs, nil
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ReadLatestSnapshot returns the snapshot with the greatest timestamp, the
// most recently written one on ties. It returns nil, nil when there is none
// and an error when the stored hash does not match the document.
func (s *Store) ReadLatestSnapshot(ctx context.Context) (*event.SnapshotRecord, error) {
	var (
		snap event.SnapshotRecord
		hash string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT doc, doc_hash, timestamp
		FROM snapshots
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`).Scan(&snap.Doc, &hash, &snap.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}
	if got := ir.DocumentHash([]byte(snap.Doc)); got != hash {
		return nil, fmt.Errorf("snapshot at %s is corrupt: hash %s, stored %s", snap.Timestamp, got, hash)
	}
	return &snap, nil
}
