package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/stagelog/internal/journal"
)

// KV is a key/value backend able to run read-modify-write cycles
// atomically. Store (SQLite) and RedisKV implement it.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}

// ArrayStore persists every record as one JSON array under a single key.
// Writes go through KV.Update so concurrent mutations never tear the array.
type ArrayStore struct {
	kv  KV
	key string
}

// NewArrayStore returns an ArrayStore keeping its array under key. An empty
// key means RecordsKey.
func NewArrayStore(kv KV, key string) *ArrayStore {
	if key == "" {
		key = RecordsKey
	}
	return &ArrayStore{kv: kv, key: key}
}

// List returns all records in stored order.
func (a *ArrayStore) List(ctx context.Context) ([]journal.Record, error) {
	raw, err := a.kv.Load(ctx, a.key)
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

// Get returns the record with id.
func (a *ArrayStore) Get(ctx context.Context, id string) (journal.Record, error) {
	recs, err := a.List(ctx)
	if err != nil {
		return journal.Record{}, err
	}
	for _, r := range recs {
		if r.ID == id {
			return r, nil
		}
	}
	return journal.Record{}, ErrNotFound
}

// Insert appends rec, failing with ErrDuplicateID if its id is present.
func (a *ArrayStore) Insert(ctx context.Context, rec journal.Record) error {
	return a.mutate(ctx, func(recs []journal.Record) ([]journal.Record, error) {
		if indexOf(recs, rec.ID) >= 0 {
			return nil, fmt.Errorf("inserting %s: %w", rec.ID, ErrDuplicateID)
		}
		return append(recs, rec), nil
	})
}

// Update replaces the record with id in place.
func (a *ArrayStore) Update(ctx context.Context, id string, rec journal.Record) error {
	return a.mutate(ctx, func(recs []journal.Record) ([]journal.Record, error) {
		i := indexOf(recs, id)
		if i < 0 {
			return nil, fmt.Errorf("updating %s: %w", id, ErrNotFound)
		}
		recs[i] = rec
		return recs, nil
	})
}

// Delete removes the record with id.
func (a *ArrayStore) Delete(ctx context.Context, id string) error {
	return a.mutate(ctx, func(recs []journal.Record) ([]journal.Record, error) {
		i := indexOf(recs, id)
		if i < 0 {
			return nil, fmt.Errorf("deleting %s: %w", id, ErrNotFound)
		}
		return append(recs[:i], recs[i+1:]...), nil
	})
}

// Clear removes every record and returns the records it removed.
func (a *ArrayStore) Clear(ctx context.Context) ([]journal.Record, error) {
	var removed []journal.Record
	err := a.mutate(ctx, func(recs []journal.Record) ([]journal.Record, error) {
		removed = recs
		return []journal.Record{}, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Raw returns the stored JSON array as persisted, "[]" when empty.
func (a *ArrayStore) Raw(ctx context.Context) ([]byte, error) {
	raw, err := a.kv.Load(ctx, a.key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []byte("[]"), nil
	}
	return raw, nil
}

func (a *ArrayStore) mutate(ctx context.Context, fn func([]journal.Record) ([]journal.Record, error)) error {
	return a.kv.Update(ctx, a.key, func(old []byte) ([]byte, error) {
		recs, err := decodeRecords(old)
		if err != nil {
			return nil, err
		}
		next, err := fn(recs)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
}

func decodeRecords(raw []byte) ([]journal.Record, error) {
	if len(raw) == 0 {
		return []journal.Record{}, nil
	}
	var recs []journal.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	if recs == nil {
		recs = []journal.Record{}
	}
	return recs, nil
}

func indexOf(recs []journal.Record, id string) int {
	for i, r := range recs {
		if r.ID == id {
			return i
		}
	}
	return -1
}
