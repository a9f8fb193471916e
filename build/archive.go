package build

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoLevel = errors.New("archive does not contain a level.dat")

// extractArchive unpacks the zip at path into dst and returns the directory
// holding the world's level.dat.
func extractArchive(path, dst string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	err = ensureDirectory(dst)
	if err != nil {
		return "", err
	}

	for _, f := range r.File {
		if err := extractFile(f, dst); err != nil {
			return "", err
		}
	}

	return findWorldRoot(dst)
}

func extractFile(f *zip.File, dst string) error {
	name := filepath.FromSlash(f.Name)
	target := filepath.Join(dst, name)
	if target == filepath.Clean(dst) {
		return nil
	}
	if filepath.IsAbs(name) || !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal path in archive: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, os.ModePerm)
	}

	err := os.MkdirAll(filepath.Dir(target), os.ModePerm)
	if err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

// findWorldRoot returns the shallowest directory under root containing a
// level.dat. Uploads are zipped either from inside or from above the world
// folder.
func findWorldRoot(root string) (string, error) {
	found := ""
	depth := -1
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "level.dat" {
			return nil
		}

		dir := filepath.Dir(p)
		n := strings.Count(dir, string(os.PathSeparator))
		if depth < 0 || n < depth {
			found, depth = dir, n
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrNoLevel
	}
	return found, nil
}
