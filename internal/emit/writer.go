package emit

import (
	"fmt"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
)

// WriteFile writes data to path atomically: the bytes go to a temporary file
// in the target directory which is then renamed over path.
func WriteFile(fsys billy.Filesystem, path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := fsys.TempFile(dir, ".minuet-tmp-")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			if rmErr := fsys.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				err = fmt.Errorf("%w (cleanup of %s failed: %v)", err, tmp, rmErr)
			}
		}
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return fsys.Rename(tmp, path)
}
