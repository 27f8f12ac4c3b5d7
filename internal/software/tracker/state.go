package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bus-boarding/internal/domain/geo"
)

// LocalState is what the client remembers between runs.
type LocalState struct {
	Token   string     `json:"token,omitempty"`
	Pending bool       `json:"pending"`
	Stop    *geo.Point `json:"stop,omitempty"`
	Line    string     `json:"line,omitempty"`
	Origin  string     `json:"origin,omitempty"`
}

// Ready reports whether the state is enough to start polling.
func (s LocalState) Ready() bool {
	return s.Pending && s.Stop != nil && s.Line != ""
}

// Store persists LocalState.
type Store interface {
	Load() (LocalState, error)
	Save(LocalState) error
}

// FileStore keeps LocalState as a JSON file.
type FileStore struct {
	Path string
}

// Load reads the file. A missing file is an empty state.
func (f FileStore) Load() (LocalState, error) {
	var st LocalState
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read session state: %w", err)
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return LocalState{}, fmt.Errorf("decode session state %s: %w", f.Path, err)
	}
	return st, nil
}

// Save replaces the file atomically. The file may hold a token, so it is private to the user.
func (f FileStore) Save(st LocalState) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session state: %w", err)
	}
	return os.Rename(tmp.Name(), f.Path)
}
