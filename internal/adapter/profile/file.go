// Package profile persists per-person profile state used as an answering persona.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"perspective/internal/adapter/fs"
	"perspective/internal/domain"
	"perspective/internal/logging"
)

const filePattern = "profile_state_*.json"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SafeName maps a profile name to the characters allowed in file names and keys.
func SafeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// FileStore keeps one profile_state_<name>.json file per profile in dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, "profile_state_"+SafeName(name)+".json")
}

func (s *FileStore) Get(_ context.Context, name string) (*domain.ProfileState, error) {
	return readState(s.path(name))
}

func (s *FileStore) Put(_ context.Context, state *domain.ProfileState) error {
	if state.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(state.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(state.Name))
}

// Latest returns the profile with the newest updated_at, falling back to
// file modification time for states without one. Unreadable files are skipped.
func (s *FileStore) Latest(_ context.Context) (*domain.ProfileState, error) {
	files, err := fs.Glob(s.dir, filePattern)
	if err != nil {
		return nil, err
	}

	var latest *domain.ProfileState
	var latestAt time.Time
	for _, f := range files {
		state, err := readState(f.Path)
		if err != nil {
			logging.Warnf("skipping profile state %s: %v", f.Path, err)
			continue
		}
		at := state.UpdatedAt
		if at.IsZero() {
			at = time.Unix(0, f.ModTime)
		}
		if latest == nil || at.After(latestAt) {
			latest, latestAt = state, at
		}
	}
	if latest == nil {
		return nil, domain.ErrProfileNotFound
	}
	return latest, nil
}

// List returns every readable profile, newest file first.
func (s *FileStore) List(_ context.Context) ([]*domain.ProfileState, error) {
	files, err := fs.Glob(s.dir, filePattern)
	if err != nil {
		return nil, err
	}
	states := make([]*domain.ProfileState, 0, len(files))
	for _, f := range files {
		if state, err := readState(f.Path); err == nil {
			states = append(states, state)
		}
	}
	return states, nil
}

func readState(path string) (*domain.ProfileState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	var state domain.ProfileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid profile state %s: %w", path, err)
	}
	return &state, nil
}
