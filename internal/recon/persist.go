package recon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// snapshot is the durable mirror of the registry: the reconstruction list
// plus the global config registry, serialized as one JSON document. There
// is no schema versioning; restore tolerates records that predate newly
// added optional fields through the same normalization SetReconstructions
// applies.
type snapshot struct {
	Reconstructions []*Reconstruction `json:"reconstructions"`
	Configs         []ConfigSelection `json:"configs"`
}

// Save mirrors the registry to the state file. The write goes through a
// temp file and rename; it is not atomic with respect to any network call
// that accompanied the mutation.
func (reg *Registry) Save(path string) error {
	reg.mu.Lock()
	snap := snapshot{
		Reconstructions: reg.reconstructions,
		Configs:         reg.configs,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	reg.mu.Unlock()
	if err != nil {
		return fmt.Errorf("serialize registry state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Registry state saved")
	return nil
}

// Restore loads the state file back into the registry. A missing file is
// not an error; the registry simply starts empty.
func (reg *Registry) Restore(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("No state file, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse state file %s: %w", path, err)
	}

	reg.SetReconstructions(snap.Reconstructions)
	reg.SetConfigs(snap.Configs)
	log.Info().
		Str("path", path).
		Int("reconstructions", len(snap.Reconstructions)).
		Int("configs", len(snap.Configs)).
		Msg("Registry state restored")
	return nil
}
