// Package cache provides the TTL key-value store fronting search results,
// typeahead suggestions, and per-remote-source sub-results. It is backed by
// BadgerDB, in-memory by default or on-disk when given a directory.
//
// Keys are grouped into families (search, suggest, remote) so that a single
// invalidation pass can clear every derived artifact after a content change.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/fedsearch/fedsearch/pkg/log"
)

// Key families. Every cached artifact lives under exactly one of these
// prefixes; InvalidateAll clears all of them in one pass.
const (
	PrefixSearch  = "search:"
	PrefixSuggest = "suggest:"
	PrefixRemote  = "remote:"
)

// ErrMiss is returned by Get when the key is absent or its TTL has expired.
var ErrMiss = errors.New("cache miss")

var logger = log.ForService("cache")

type Cache struct {
	db *badger.DB
}

// badgerLoggerAdapter routes BadgerDB's internal logging through the
// project logger.
type badgerLoggerAdapter struct {
	l *log.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (b *badgerLoggerAdapter) Errorf(msg string, items ...any)   { b.l.Errorf(msg, items...) }
func (b *badgerLoggerAdapter) Warningf(msg string, items ...any) { b.l.Warnf(msg, items...) }
func (b *badgerLoggerAdapter) Infof(msg string, items ...any)    { b.l.Debugf(msg, items...) }
func (b *badgerLoggerAdapter) Debugf(msg string, items ...any)   { b.l.Debugf(msg, items...) }

// Open creates a cache. An empty dir opens an in-memory store; otherwise the
// directory is created if needed and the cache persists across restarts.
func Open(dir string) (*Cache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLoggerAdapter{l: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives a deterministic cache key: the family prefix plus a hash of
// the normalized query text and any option flags that affect results.
func Key(family, material string) string {
	sum := sha256.Sum256([]byte(material))
	return family + hex.EncodeToString(sum[:])
}

// Get returns the value stored under key, or ErrMiss when the key is absent
// or expired.
func (c *Cache) Get(key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache key %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key for the given TTL. Entries are overwritten
// wholesale; there is no in-place mutation.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("writing cache key %s: %w", key, err)
	}
	return nil
}

// InvalidatePrefix removes every entry under the given key prefix.
func (c *Cache) InvalidatePrefix(prefix string) error {
	if err := c.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("dropping cache prefix %s: %w", prefix, err)
	}
	return nil
}

// InvalidateAll clears the search, suggest, and per-remote-source key
// families in one pass. Called on content mutation events so that no stale
// rendering survives a publish, update, or delete.
func (c *Cache) InvalidateAll() error {
	err := c.db.DropPrefix(
		[]byte(PrefixSearch),
		[]byte(PrefixSuggest),
		[]byte(PrefixRemote),
	)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	logger.Debugf("cache invalidated (all key families)")
	return nil
}
