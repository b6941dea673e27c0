package state

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// configFS reads config sources, relative names are resolved against base.
// fs.FS paths are unrooted, so absolute names work only with root filesystem.
type configFS struct {
	fsys fs.FS
	base string
}

func osConfigFS(filename string) (configFS, string) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		abs = filename
	}
	abs = filepath.ToSlash(abs)
	return configFS{fsys: os.DirFS("/"), base: path.Dir(abs)}, path.Base(abs)
}

func (self configFS) normalize(name string) string {
	name = filepath.ToSlash(name)
	if !path.IsAbs(name) {
		name = path.Join(self.base, name)
	}
	return strings.TrimPrefix(path.Clean(name), "/")
}

// nil,nil = not found
func (self configFS) read(norm string) ([]byte, error) {
	b, err := fs.ReadFile(self.fsys, norm)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}
