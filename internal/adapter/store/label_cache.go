package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
	"perspective/internal/domain"
)

var (
	bucketLabels = []byte("labels")
	bucketMeta   = []byte("meta")
)

// LabelCache persists labeling results keyed by the hash of the labeled text,
// so re-ingesting identical text does not call the labeler again.
type LabelCache struct {
	db *bbolt.DB
}

type storedLabel struct {
	Category string `json:"c"`
	Summary  string `json:"s"`
}

// NewLabelCache opens or creates the cache database at path.
func NewLabelCache(path string) (*LabelCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketLabels, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LabelCache{db: db}, nil
}

func labelKey(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte(hex.EncodeToString(sum[:]))
}

// Get returns the cached fragment for text, if any.
func (c *LabelCache) Get(text string) (domain.Fragment, bool, error) {
	var frag domain.Fragment
	var found bool
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLabels).Get(labelKey(text))
		if data == nil {
			return nil
		}
		var stored storedLabel
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil // Treat corrupted entries as misses
		}
		frag = domain.Fragment{Text: text, Category: stored.Category, Summary: stored.Summary}
		found = true
		return nil
	})
	return frag, found, err
}

// Put stores the label for frag.Text.
func (c *LabelCache) Put(frag domain.Fragment) error {
	data, err := json.Marshal(storedLabel{Category: frag.Category, Summary: frag.Summary})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLabels).Put(labelKey(frag.Text), data)
	})
}

// Count returns the number of cached labels.
func (c *LabelCache) Count() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketLabels).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes all cached labels, keeping schema info.
func (c *LabelCache) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketLabels); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketLabels)
		return err
	})
}

func (c *LabelCache) Close() error {
	return c.db.Close()
}
