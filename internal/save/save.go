// Package save defines the persisted resource-state format consumed by
// the coordinator's hydration path. All arrays are index-aligned by
// position; consumers resolve ids first before indexing any other array.
package save

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// PersistedResources is the external resource-state shape. Capacities
// entries are nil for uncapped resources. Flags carries opaque
// per-resource bits preserved round-trip for forward compatibility.
type PersistedResources struct {
	IDs        []string   `json:"ids"`
	Amounts    []float64  `json:"amounts"`
	Capacities []*float64 `json:"capacities"`
	Unlocked   []bool     `json:"unlocked"`
	Visible    []bool     `json:"visible"`
	Flags      []uint32   `json:"flags"`
}

// Validate checks that every array is index-aligned with IDs.
func (p *PersistedResources) Validate() error {
	n := len(p.IDs)
	if len(p.Amounts) != n || len(p.Capacities) != n || len(p.Unlocked) != n ||
		len(p.Visible) != n || len(p.Flags) != n {
		return errors.Errorf("save: misaligned resource arrays (ids=%d amounts=%d capacities=%d unlocked=%d visible=%d flags=%d)",
			n, len(p.Amounts), len(p.Capacities), len(p.Unlocked), len(p.Visible), len(p.Flags))
	}
	return nil
}

// File is the on-disk save envelope. SavedAtUnixMs feeds offline catch-up
// on the next boot.
type File struct {
	Version       int                `json:"version"`
	SavedAtUnixMs int64              `json:"savedAtUnixMs"`
	Step          uint64             `json:"step"`
	Resources     PersistedResources `json:"resources"`
}

// CurrentVersion is written into new save files.
const CurrentVersion = 1

// Decode parses and validates a save file.
func Decode(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "save: decode")
	}
	if f.Version <= 0 || f.Version > CurrentVersion {
		return nil, errors.Errorf("save: unsupported version %d", f.Version)
	}
	if err := f.Resources.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Encode serializes a save file.
func Encode(f *File) ([]byte, error) {
	if err := f.Resources.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "save: encode")
	}
	return data, nil
}

// LoadFile reads a save file from disk. A missing file returns
// (nil, nil): a fresh session, not an error.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "save: read %s", path)
	}
	return Decode(data)
}

// WriteFile atomically writes a save file to disk.
func WriteFile(path string, f *File) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "save: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "save: rename %s", path)
	}
	return nil
}
