package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileSource ages a path by its modification time.
type FileSource struct{}

// Age stats the locator.
func (FileSource) Age(_ context.Context, t Target) (Stamp, error) {
	return statStamp(t.Locator)
}

func statStamp(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Stamp{}, nil
	}
	if err != nil {
		return Stamp{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Stamp{Exists: true, AsOf: info.ModTime()}, nil
}

// Exists reports whether path is present. Errors other than "not exist"
// count as absent.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
