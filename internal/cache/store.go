package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/model"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
)

// schemaVersion guards the projection layout; a bump invalidates every
// previously written entry on read.
const schemaVersion = 1

const (
	reducedItemCount = 20
	minimalItemCount = 10
)

type Options struct {
	// Dir is the badger data directory. Ignored when InMemory is set.
	Dir        string
	InMemory   bool
	MaxItems   int
	ByteBudget int
	TTL        time.Duration
}

// Store keeps one size- and time-bounded generation of an owner's item
// projections in an embedded badger database. A Set fully replaces the
// previous generation; there is never a merge.
type Store struct {
	db   *badger.DB
	opts Options
}

type entry struct {
	SchemaVersion int                    `msgpack:"schema_version"`
	CachedAt      int64                  `msgpack:"cached_at"`
	Items         []model.ItemProjection `msgpack:"items"`
}

type Info struct {
	Exists    bool  `json:"exists"`
	SizeBytes int   `json:"size_bytes"`
	ItemCount int   `json:"item_count"`
	CachedAt  int64 `json:"cached_at"`
}

func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, fmt.Errorf("cache dir is required for on-disk mode")
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 100
	}
	if opts.ByteBudget <= 0 {
		opts.ByteBudget = 500 * 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func ownerKey(ownerID string) []byte {
	return []byte("cache:" + ownerID)
}

// Set overwrites the owner's cache generation with a projection of the given
// items, which must already be in the active sort order. When the encoded
// blob exceeds the byte budget the write degrades through a fixed ladder:
// full projection capped at MaxItems, then 20 items, then 10 items with
// minimal fields. Only a failure of the last tier is surfaced.
func (s *Store) Set(ctx context.Context, ownerID string, items []model.Item) error {
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID))

	projected := make([]model.ItemProjection, 0, len(items))
	for _, it := range items {
		projected = append(projected, model.Project(it))
	}
	if len(projected) > s.opts.MaxItems {
		projected = projected[:s.opts.MaxItems]
	}

	blob, err := s.encode(projected)
	if err == nil && len(blob) > s.opts.ByteBudget {
		err = fmt.Errorf("%w: %d bytes over %d budget", appErr.ErrCacheOverflow, len(blob), s.opts.ByteBudget)
	}
	if err == nil {
		if err = s.write(ownerID, blob); err == nil {
			return nil
		}
	}
	logger.Warn("cache write degraded to reduced tier", zap.Int("items", len(projected)), zap.Error(err))

	reduced := projected
	if len(reduced) > reducedItemCount {
		reduced = reduced[:reducedItemCount]
	}
	blob, err = s.encode(reduced)
	if err == nil && len(blob) <= s.opts.ByteBudget {
		if werr := s.write(ownerID, blob); werr == nil {
			return nil
		}
	}
	logger.Warn("reduced cache write failed, falling back to minimal subset")

	// Last resort: wipe the key and keep only enough to render a first
	// screen.
	_ = s.Clear(ctx, ownerID)
	minimal := projected
	if len(minimal) > minimalItemCount {
		minimal = minimal[:minimalItemCount]
	}
	stripped := make([]model.ItemProjection, 0, len(minimal))
	for _, p := range minimal {
		stripped = append(stripped, p.Minimal())
	}
	blob, err = s.encode(stripped)
	if err != nil {
		return fmt.Errorf("encode minimal cache entry: %w", err)
	}
	if err := s.write(ownerID, blob); err != nil {
		return fmt.Errorf("write minimal cache entry: %w", err)
	}
	return nil
}

// Get returns the cached projections, or absent when there is no entry, the
// entry expired (deleted as a side effect), the schema moved on, or the
// stored bytes fail to decode. Corruption self-heals via clear.
func (s *Store) Get(ctx context.Context, ownerID string) ([]model.ItemProjection, bool, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ownerKey(ownerID))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ent entry
	if derr := msgpack.Unmarshal(blob, &ent); derr != nil || ent.SchemaVersion != schemaVersion {
		logutil.GetLogger(ctx).Warn("discarding unreadable cache entry",
			zap.String("owner_id", ownerID), zap.Error(errors.Join(derr, appErr.ErrCacheCorrupt)))
		_ = s.Clear(ctx, ownerID)
		return nil, false, nil
	}
	if time.Since(time.Unix(ent.CachedAt, 0)) > s.opts.TTL {
		_ = s.Clear(ctx, ownerID)
		return nil, false, nil
	}
	return ent.Items, true, nil
}

func (s *Store) Clear(_ context.Context, ownerID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(ownerKey(ownerID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *Store) Info(_ context.Context, ownerID string) (Info, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ownerKey(ownerID))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}
	var ent entry
	if err := msgpack.Unmarshal(blob, &ent); err != nil {
		return Info{Exists: true, SizeBytes: len(blob)}, nil
	}
	return Info{
		Exists:    true,
		SizeBytes: len(blob),
		ItemCount: len(ent.Items),
		CachedAt:  ent.CachedAt,
	}, nil
}

// Sweep walks every cache entry and drops the expired and unreadable ones.
// Reads already self-heal lazily; the sweep keeps owners who never come back
// from pinning dead generations on disk.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("cache:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			blob, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var ent entry
			if derr := msgpack.Unmarshal(blob, &ent); derr != nil ||
				ent.SchemaVersion != schemaVersion ||
				time.Since(time.Unix(ent.CachedAt, 0)) > s.opts.TTL {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range stale {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			logutil.GetLogger(ctx).Warn("cache sweep delete failed", zap.ByteString("key", key), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Store) encode(items []model.ItemProjection) ([]byte, error) {
	return msgpack.Marshal(entry{
		SchemaVersion: schemaVersion,
		CachedAt:      time.Now().Unix(),
		Items:         items,
	})
}

func (s *Store) write(ownerID string, blob []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ownerKey(ownerID), blob)
	})
}
