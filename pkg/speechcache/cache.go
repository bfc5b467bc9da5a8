// Package speechcache memoizes synthesized speech audio by exact source
// text, so repeated read-aloud requests for the same string never hit the
// synthesis capability twice.
//
// The cache is an explicit, injectable object constructed once per
// application instance. It is backed by BadgerDB in memory-only mode:
// values live for the process lifetime, there is no eviction, and every
// read returns a fresh copy so callers can never corrupt the stored bytes.
package speechcache

import (
	"errors"
	"fmt"
	"log"

	badger "github.com/dgraph-io/badger/v4"
)

// Cache maps exact synthesized text to raw audio bytes.
// Safe for concurrent use. Writes are idempotent; keys are never evicted.
type Cache struct {
	db *badger.DB
}

// New creates an empty in-memory cache.
func New() (*Cache, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(quietLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("speechcache: open: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns a copy of the cached audio for text, if present.
func (c *Cache) Get(text string) ([]byte, bool) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(text))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Printf("[speechcache] ERROR: get: %v", err)
		}
		return nil, false
	}
	return val, true
}

// Put stores a copy of the audio for text. Overwriting an existing entry
// with re-synthesized audio is harmless.
func (c *Cache) Put(text string, audio []byte) error {
	buf := make([]byte, len(audio))
	copy(buf, audio)
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(text), buf)
	})
	if err != nil {
		return fmt.Errorf("speechcache: put: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// quietLogger suppresses badger's debug and info output.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[speechcache] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[speechcache] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
