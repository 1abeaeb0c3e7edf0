package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads a catalogue file, choosing the parser by extension
// (.json for the flat export, .csv for an HYG dump).
func LoadFile(path string) ([]Star, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue %s: %w", path, err)
	}
	defer f.Close()

	var stars []Star
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		stars, err = ReadJSON(f)
	case ".csv":
		stars, err = ReadHYG(f)
	default:
		return nil, fmt.Errorf("catalogue %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing catalogue %s: %w", path, err)
	}
	return stars, nil
}
