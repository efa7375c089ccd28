// Package weights stores per-room model weight artifacts on disk.
package weights

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/signature"
)

// ErrBaseline is returned when asked to delete the baseline artifact.
var ErrBaseline = errors.New("baseline weights cannot be deleted")

// ModelName returns the artifact name of a room's fine-tuned model.
func ModelName(roomID int64) string {
	return constants.RoomModelPrefix + strconv.FormatInt(roomID, 10)
}

// FileStore keeps one weight file per room under a directory. Rooms that
// were never trained fall back to the baseline file, if configured.
type FileStore struct {
	dir          string
	baselinePath string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir, baselinePath string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create weights dir: %w", err)
	}
	return &FileStore{dir: dir, baselinePath: baselinePath}, nil
}

// Path returns the file path of a named artifact. The baseline name maps
// to the configured baseline path when one is set.
func (s *FileStore) Path(modelName string) string {
	if modelName == constants.BaselineModelName && s.baselinePath != "" {
		return s.baselinePath
	}
	return filepath.Join(s.dir, modelName+constants.WeightsExtension)
}

// Exists reports whether the room has its own fine-tuned artifact.
func (s *FileStore) Exists(roomID int64) bool {
	_, err := os.Stat(s.Path(ModelName(roomID)))
	return err == nil
}

// Load returns the room's weights, else the baseline weights, else nil.
func (s *FileStore) Load(ctx context.Context, roomID int64) (signature.ModelWeights, error) {
	data, err := os.ReadFile(s.Path(ModelName(roomID)))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}

	data, err = os.ReadFile(s.Path(constants.BaselineModelName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline weights: %w", err)
	}
	return data, nil
}

// Save writes the room's weights and returns the artifact name. The file is
// written to a temporary name and renamed into place, so readers see either
// the old or the new artifact.
func (s *FileStore) Save(ctx context.Context, roomID int64, weights signature.ModelWeights) (string, error) {
	name := ModelName(roomID)
	if err := s.write(name, weights); err != nil {
		return "", err
	}
	return name, nil
}

// Current returns the room's own artifact, nil if it was never trained.
// Unlike Load it does not fall back to the baseline.
func (s *FileStore) Current(ctx context.Context, roomID int64) (signature.ModelWeights, error) {
	data, err := os.ReadFile(s.Path(ModelName(roomID)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	return data, nil
}

// Restore puts back a snapshot taken with Current. A nil snapshot removes
// the room's artifact so the room falls back to the baseline again.
func (s *FileStore) Restore(ctx context.Context, roomID int64, previous signature.ModelWeights) error {
	name := ModelName(roomID)
	if previous == nil {
		return s.Delete(name)
	}
	return s.write(name, previous)
}

func (s *FileStore) write(name string, weights signature.ModelWeights) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(weights); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write weights: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync weights: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close weights: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("failed to replace weights: %w", err)
	}
	return nil
}

// Delete removes a named artifact. Missing files are not an error.
func (s *FileStore) Delete(modelName string) error {
	if modelName == constants.BaselineModelName {
		return ErrBaseline
	}
	if err := os.Remove(s.Path(modelName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete weights: %w", err)
	}
	return nil
}
