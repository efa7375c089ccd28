package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/signet/internal/constants"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// readImage reads a signature image from disk, rejecting unsupported extensions.
func readImage(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !constants.AllowedImageExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
