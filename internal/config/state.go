package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// State is the lifecycle position of the read-only root setup.
type State string

const (
	// StateAbsent means create has not run (or destroy has).
	StateAbsent State = "absent"
	// StateEnabled means the next boot uses the overlay root.
	StateEnabled State = "enabled"
	// StateDisabled means the overlay infrastructure exists but the next
	// boot uses the writable root.
	StateDisabled State = "disabled"
)

// ParseState validates a persisted state value
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateAbsent, StateEnabled, StateDisabled:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown state: %q", s)
	}
}

// StateSource says where a loaded state came from.
type StateSource string

const (
	SourceMarker   StateSource = "marker file"
	SourceInferred StateSource = "inferred from backup files"
)

// StateStore persists the State in a small key=value marker file.
type StateStore struct {
	fs    afero.Fs
	paths Paths
}

// NewStateStore creates a new StateStore instance
func NewStateStore(fs afero.Fs, paths Paths) *StateStore {
	return &StateStore{fs: fs, paths: paths}
}

// Path returns the marker file path
func (s *StateStore) Path() string {
	return s.paths.StateFile
}

func (s *StateStore) exists(path string) (bool, error) {
	_, err := s.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", path, err)
}

// Load returns the current state. Without a marker file the state is
// inferred from backup files left by earlier releases, which used them as
// the only record.
func (s *StateStore) Load() (State, StateSource, error) {
	found, err := s.exists(s.paths.StateFile)
	if err != nil {
		return "", "", err
	}

	if found {
		cfg := New(s.fs, s.paths.StateFile)
		if err := cfg.Load(); err != nil {
			return "", "", fmt.Errorf("failed to read state file: %w", err)
		}
		value, err := cfg.Get(KeyState)
		if err != nil {
			return "", "", fmt.Errorf("failed to read state file: %w", err)
		}
		state, err := ParseState(value)
		if err != nil {
			return "", "", fmt.Errorf("invalid state file %s: %w", s.paths.StateFile, err)
		}
		return state, SourceMarker, nil
	}

	state, err := s.infer()
	if err != nil {
		return "", "", err
	}
	return state, SourceInferred, nil
}

func (s *StateStore) infer() (State, error) {
	created, err := s.exists(BackupPath(s.paths.HookFunctions))
	if err != nil {
		return "", err
	}
	if !created {
		return StateAbsent, nil
	}

	enabled, err := s.BootBackupsExist()
	if err != nil {
		return "", err
	}
	if enabled {
		return StateEnabled, nil
	}
	return StateDisabled, nil
}

// BootBackupsExist reports whether both boot-config and cmdline backups are
// present.
func (s *StateStore) BootBackupsExist() (bool, error) {
	for _, p := range []string{s.paths.BootConfig, s.paths.Cmdline} {
		ok, err := s.exists(BackupPath(p))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Save writes state to the marker file. StateAbsent removes the file.
func (s *StateStore) Save(state State, kernelRelease string) error {
	if state == StateAbsent {
		return s.Clear()
	}

	cfg := New(s.fs, s.paths.StateFile)
	cfg.header = "ror state, do not edit"
	values := map[string]string{
		KeyState:   string(state),
		KeyUpdated: time.Now().UTC().Format(time.RFC3339),
	}
	if kernelRelease != "" {
		values[KeyKernelRelease] = kernelRelease
	}
	if err := cfg.SetAll(values); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// KernelRelease returns the release recorded by create, if any
func (s *StateStore) KernelRelease() string {
	cfg := New(s.fs, s.paths.StateFile)
	return cfg.GetOrDefault(KeyKernelRelease, "")
}

// Clear removes the marker file
func (s *StateStore) Clear() error {
	err := s.fs.Remove(s.paths.StateFile)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("failed to remove state file: %w", err)
}
