package config

import (
	"testing"

	"github.com/spf13/afero"
)

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

func TestStateStoreSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStateStore(fs, DefaultPaths())

	if err := store.Save(StateEnabled, "6.1.21-v7+"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	state, source, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if state != StateEnabled || source != SourceMarker {
		t.Errorf("Load() = (%v, %v), want (%v, %v)", state, source, StateEnabled, SourceMarker)
	}

	// Saving without a release keeps the recorded one
	if err := store.Save(StateDisabled, ""); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if got := store.KernelRelease(); got != "6.1.21-v7+" {
		t.Errorf("KernelRelease() = %q, want %q", got, "6.1.21-v7+")
	}

	state, _, _ = store.Load()
	if state != StateDisabled {
		t.Errorf("Load() = %v, want %v", state, StateDisabled)
	}

	if err := store.Save(StateAbsent, ""); err != nil {
		t.Fatalf("Save(absent) failed: %v", err)
	}
	if exists, _ := afero.Exists(fs, store.Path()); exists {
		t.Error("state file should be removed when saving absent")
	}
}

func TestStateStoreInfersLegacyState(t *testing.T) {
	p := DefaultPaths()

	tests := []struct {
		name    string
		backups []string
		want    State
	}{
		{
			name: "nothing",
			want: StateAbsent,
		},
		{
			name:    "hook-functions backup only",
			backups: []string{p.HookFunctions},
			want:    StateDisabled,
		},
		{
			name:    "all backups",
			backups: []string{p.HookFunctions, p.BootConfig, p.Cmdline},
			want:    StateEnabled,
		},
		{
			name:    "one boot backup missing",
			backups: []string{p.HookFunctions, p.BootConfig},
			want:    StateDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, b := range tt.backups {
				touch(t, fs, BackupPath(b))
			}

			state, source, err := NewStateStore(fs, p).Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if state != tt.want {
				t.Errorf("Load() = %v, want %v", state, tt.want)
			}
			if source != SourceInferred {
				t.Errorf("source = %v, want %v", source, SourceInferred)
			}
		})
	}
}

func TestStateStoreRejectsUnknownState(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := DefaultPaths()
	if err := afero.WriteFile(fs, p.StateFile, []byte("ROR_STATE=sideways\n"), 0644); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	if _, _, err := NewStateStore(fs, p).Load(); err == nil {
		t.Fatal("Load() error = nil, want error for unknown state")
	}
}

func TestStateStoreClearMissing(t *testing.T) {
	store := NewStateStore(afero.NewMemMapFs(), DefaultPaths())
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on missing file error = %v, want nil", err)
	}
}
