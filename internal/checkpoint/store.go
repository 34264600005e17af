// Package checkpoint persists analyzer progress so repeated runs over a
// growing log only read bytes appended since the last run. A checkpoint is
// advisory: any inconsistency degrades to a full rescan, never to an error.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/agvlabs/launchstat/internal/aggregate"
)

const SchemaVersion = 1

// Checkpoint records how far a previous run got through a log file and the
// aggregate state it had built by that point.
type Checkpoint struct {
	SchemaVersion int     `json:"schema_version"`
	FilePath      string  `json:"file_path"`
	FileSize      int64   `json:"file_size"`
	FileMtime     float64 `json:"file_mtime"`
	ByteOffset    int64   `json:"byte_offset"`
	Filters       string  `json:"filters"`
	SavedAt       float64 `json:"saved_at"`

	Summary aggregate.Snapshot `json:"summary"`
}

// Decision is the outcome of validating a checkpoint against the log file
// as it exists now.
type Decision int

const (
	// Reset means the checkpoint is unusable and the run starts from byte 0
	// with a fresh aggregator.
	Reset Decision = iota
	// Resume means reading continues from the stored byte offset with the
	// stored aggregate state.
	Resume
)

func (d Decision) String() string {
	if d == Resume {
		return "resume"
	}
	return "reset"
}

// DefaultPath places the checkpoint next to the log as a dotfile, so each
// log file gets its own progress marker without any configuration.
func DefaultPath(logPath string) string {
	dir, base := filepath.Split(logPath)
	return filepath.Join(dir, "."+base+".checkpoint.json")
}

// Load reads a checkpoint from path. A missing, corrupt, or structurally
// invalid file returns (nil, nil): the caller falls back to a full scan.
// Only genuine I/O failures surface as errors.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, nil
	}
	if !cp.valid() {
		return nil, nil
	}
	return &cp, nil
}

func (cp *Checkpoint) valid() bool {
	switch {
	case cp.SchemaVersion != SchemaVersion:
		return false
	case cp.FilePath == "":
		return false
	case cp.ByteOffset < 0 || cp.FileSize < 0:
		return false
	case cp.ByteOffset > cp.FileSize:
		return false
	case cp.Summary.SchemaVersion != aggregate.SnapshotSchemaVersion:
		return false
	}
	return true
}

// Validate decides whether a loaded checkpoint can seed the current run.
// currentSize is the log's size now; filters is the active aggregation
// fingerprint. Any mismatch, a shrunken file (rotation), or a nil
// checkpoint yields Reset. The size comparison is against the recorded
// FileSize, not ByteOffset: a log whose final line had no newline yet
// leaves ByteOffset short of FileSize, and a rotation to a file sized
// between the two must still reset.
func Validate(cp *Checkpoint, logPath string, currentSize int64, filters string) Decision {
	switch {
	case cp == nil:
		return Reset
	case cp.FilePath != logPath:
		return Reset
	case cp.Filters != filters:
		return Reset
	case currentSize < cp.FileSize:
		return Reset
	}
	return Resume
}

// Save atomically writes a checkpoint: temp file in the same directory,
// fsync, then rename over the destination. A crash mid-save leaves the
// previous checkpoint intact.
func Save(path string, cp Checkpoint) error {
	cp.SchemaVersion = SchemaVersion
	cp.SavedAt = float64(time.Now().UnixNano()) / 1e9

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}
