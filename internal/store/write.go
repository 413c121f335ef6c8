package store

import (
	"context"
	"fmt"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
)

// AppendEvent inserts an event record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) AppendEvent(ctx context.Context, rec event.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, type, entity_id, payload, timestamp, device_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Type,
		rec.EntityID,
		rec.Payload,
		rec.Timestamp,
		rec.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", rec.ID, err)
	}
	return nil
}

// AppendEvents inserts records in one transaction.
func (s *Store) AppendEvents(ctx context.Context, recs []event.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, type, entity_id, payload, timestamp, device_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Type, rec.EntityID, rec.Payload, rec.Timestamp, rec.DeviceID); err != nil {
			return fmt.Errorf("append event %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// WriteSnapshot stores doc as the state after every event up to timestamp.
func (s *Store) WriteSnapshot(ctx context.Context, doc *document.Document, timestamp string) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (doc, doc_hash, timestamp)
		VALUES (?, ?, ?)
	`, string(data), ir.DocumentHash(data), timestamp)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
