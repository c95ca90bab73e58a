// Package sink persists sheets to named destinations. A destination is a
// slash-separated relative name such as "pokedex" or "moves/moves_Bulbasaur";
// each write replaces the destination in full.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/use-agent/dexharvest/models"
)

// Sink writes one sheet to one destination.
type Sink interface {
	Write(destination string, sheet *models.Sheet) error
}

// Multi writes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Write(destination string, sheet *models.Sheet) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(destination, sheet); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve maps a destination to a file path under dir with extension ext.
func resolve(dir, destination, ext string) (string, error) {
	if destination == "" {
		return "", fmt.Errorf("empty destination")
	}
	rel := filepath.Clean(filepath.FromSlash(destination))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("destination %q escapes the output directory", destination)
	}
	return filepath.Join(dir, rel+ext), nil
}

// replaceFile writes via a temporary file in the target directory so a
// failed write never leaves a truncated destination behind.
func replaceFile(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeFailed(destination string, err error) error {
	return models.NewHarvestError(models.ErrCodeSinkWrite, "write "+destination, err)
}
