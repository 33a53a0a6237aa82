package usage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/mus-format/mus-go/varint"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

// Key layout: "usage:" + query + 0x00 + candidate id. Values are varints.
const (
	usageKeyPrefix = "usage:"
	keySeparator   = 0x00
)

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// BadgerStore persists counters in a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

var _ Persister = (*BadgerStore)(nil)

// NewBadgerStore opens the database in dir. An empty dir opens an in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, lerrors.New(lerrors.ErrCodeStorageFailed, "failed to open usage database", err).
			WithDetail("path", dir)
	}
	return &BadgerStore{db: db}, nil
}

func makeUsageKey(query, id string) []byte {
	buf := make([]byte, 0, len(usageKeyPrefix)+len(query)+1+len(id))
	buf = append(buf, usageKeyPrefix...)
	buf = append(buf, query...)
	buf = append(buf, keySeparator)
	buf = append(buf, id...)
	return buf
}

func splitUsageKey(key []byte) (query, id string, ok bool) {
	rest, found := bytes.CutPrefix(key, []byte(usageKeyPrefix))
	if !found {
		return "", "", false
	}
	q, i, found := bytes.Cut(rest, []byte{keySeparator})
	if !found || len(i) == 0 {
		return "", "", false
	}
	return string(q), string(i), true
}

func encodeCount(n int64) []byte {
	v := uint64(n)
	bs := make([]byte, varint.Uint64.Size(v))
	varint.Uint64.Marshal(v, bs)
	return bs
}

func decodeCount(bs []byte) (int64, error) {
	v, _, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// Load reads every counter. Undecodable entries are skipped.
func (s *BadgerStore) Load(_ context.Context) (Counters, error) {
	counts := make(Counters)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(usageKeyPrefix), PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			query, id, ok := splitUsageKey(item.Key())
			if !ok {
				continue
			}
			var n int64
			if err := item.Value(func(val []byte) error {
				var derr error
				n, derr = decodeCount(val)
				return derr
			}); err != nil {
				slog.Warn("usage_entry_skipped", slog.String("query", query), slog.String("error", err.Error()))
				continue
			}
			bucket, exists := counts[query]
			if !exists {
				bucket = make(map[string]int64)
				counts[query] = bucket
			}
			bucket[id] = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load usage counts: %w", err)
	}
	return counts, nil
}

// OnChanged replaces the stored counters in one transaction.
func (s *BadgerStore) OnChanged(ctx context.Context, counters Counters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(usageKeyPrefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete usage key: %w", err)
			}
		}
		for query, bucket := range counters {
			for id, n := range bucket {
				if n <= 0 {
					continue
				}
				if err := txn.Set(makeUsageKey(query, id), encodeCount(n)); err != nil {
					return fmt.Errorf("set usage key: %w", err)
				}
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
