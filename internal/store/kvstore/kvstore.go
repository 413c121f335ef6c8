// Package kvstore is a Badger-backed alternative to the SQLite store. It
// keeps one key per event and one per snapshot:
//
//	event/<id>                     -> JSON event record
//	snapshot/<timestamp>/<seq>     -> JSON snapshot record
//
// Snapshot keys sort by timestamp, then write sequence, so the latest one is
// found with a single reverse seek.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

var (
	eventPrefix    = []byte("event/")
	snapshotPrefix = []byte("snapshot/")
	snapshotSeqKey = []byte("seq/snapshot")
)

// Store persists events and snapshots in Badger.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens or creates a Badger database in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence(snapshotSeqKey, 16)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return s.db.Close()
}

func eventKey(id string) []byte {
	return append(append([]byte{}, eventPrefix...), id...)
}

func snapshotKey(timestamp string, seq uint64) []byte {
	return fmt.Appendf(append([]byte{}, snapshotPrefix...), "%s/%020d", timestamp, seq)
}

// AppendEvent stores rec unless an event with the same id exists.
func (s *Store) AppendEvent(ctx context.Context, rec event.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return putEvent(txn, rec)
	})
	if err != nil {
		return fmt.Errorf("append event %s: %w", rec.ID, err)
	}
	return nil
}

// AppendEvents stores recs in one transaction. Records whose id exists
// are skipped; on error nothing is written.
func (s *Store) AppendEvents(ctx context.Context, recs []event.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := putEvent(txn, rec); err != nil {
				return fmt.Errorf("event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

func putEvent(txn *badger.Txn, rec event.Record) error {
	key := eventKey(rec.ID)
	_, err := txn.Get(key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return txn.Set(key, data)
}

// ReadAllEvents returns every stored record. Records come back in id order;
// the loader sorts them by timestamp.
func (s *Store) ReadAllEvents(ctx context.Context) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs := []event.Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec event.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return recs, nil
}

// WriteSnapshot stores doc as the state after every event up to timestamp.
func (s *Store) WriteSnapshot(ctx context.Context, doc *document.Document, timestamp string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	data, err := json.Marshal(event.SnapshotRecord{Doc: string(encoded), Timestamp: timestamp})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(timestamp, n), data)
	})
}

// ReadLatestSnapshot returns the snapshot with the greatest key, or nil
// when none exists.
func (s *Store) ReadLatestSnapshot(ctx context.Context) (*event.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var snap *event.SnapshotRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = snapshotPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the largest key <= the seek key.
		it.Seek(append(append([]byte{}, snapshotPrefix...), 0xff))
		if !it.Valid() {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			snap = &event.SnapshotRecord{}
			return json.Unmarshal(val, snap)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}
	return snap, nil
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = eventPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
