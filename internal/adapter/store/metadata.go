package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"perspective/internal/domain"
)

// writeFileAtomic writes data to a temp file in the same directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// encodeMetadata renders fragments as an indented JSON array.
func encodeMetadata(fragments []domain.Fragment) ([]byte, error) {
	if fragments == nil {
		fragments = []domain.Fragment{}
	}
	return json.MarshalIndent(fragments, "", "  ")
}

func decodeMetadata(data []byte) ([]domain.Fragment, error) {
	var fragments []domain.Fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		return nil, fmt.Errorf("metadata file is not a JSON array of fragments: %v: %w", err, domain.ErrCorruptStore)
	}
	return fragments, nil
}

// readArtifact reads one half of the store pair, mapping absence to ErrCorruptStore.
func readArtifact(kind, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s file not found: %s: %w", kind, path, domain.ErrCorruptStore)
		}
		return nil, fmt.Errorf("failed to read %s file %s: %v: %w", kind, path, err, domain.ErrCorruptStore)
	}
	return data, nil
}

// Exists reports whether both store artifacts are present.
func Exists(indexPath, metadataPath string) bool {
	if _, err := os.Stat(indexPath); err != nil {
		return false
	}
	if _, err := os.Stat(metadataPath); err != nil {
		return false
	}
	return true
}
