package utils

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
)

func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// IsFileExists reports whether path names a regular file on fs.
func IsFileExists(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat %s", path)
	}

	return !info.IsDir(), nil
}

// FileSize returns 0 for a missing file.
func FileSize(fs afero.Fs, path string) (int64, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "stat %s", path)
	}

	return info.Size(), nil
}
