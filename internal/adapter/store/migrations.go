package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the label cache schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// LabelSettings are the labeler settings that make cached labels reusable.
type LabelSettings struct {
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	PromptVersion int     `json:"prompt_version"`
}

// ComputeConfigHash computes a hash of label-relevant settings.
// A changed hash means cached labels are stale.
func ComputeConfigHash(s LabelSettings) string {
	data, _ := json.Marshal(s)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// GetSchemaInfo retrieves the current schema info from the database.
func (c *LabelCache) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keySchemaVersion); v != nil {
			if err := json.Unmarshal(v, &info.Version); err != nil {
				info.Version = 0
			}
		}
		if v := b.Get(keyConfigHash); v != nil {
			info.ConfigHash = string(v)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (c *LabelCache) SetSchemaInfo(info *SchemaInfo) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// MigrationResult describes the result of a schema check.
type MigrationResult struct {
	NeedsRebuild bool
	OldVersion   int
	NewVersion   int
	Reason       string
}

// CheckMigration reports whether cached labels must be discarded.
func (c *LabelCache) CheckMigration(s LabelSettings) (*MigrationResult, error) {
	info, err := c.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.Reason = "initializing schema version"
	case info.Version != CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("schema version changed (v%d -> v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(s) {
		result.NeedsRebuild = true
		result.Reason = "labeler configuration changed"
	}

	return result, nil
}

// Prepare clears stale labels when needed and records the current settings.
func (c *LabelCache) Prepare(s LabelSettings) (*MigrationResult, error) {
	result, err := c.CheckMigration(s)
	if err != nil {
		return nil, err
	}
	if result.NeedsRebuild {
		if err := c.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear label cache: %w", err)
		}
	}
	if err := c.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion, ConfigHash: ComputeConfigHash(s)}); err != nil {
		return nil, err
	}
	return result, nil
}
