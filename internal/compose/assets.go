package compose

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Assets reports whether a media reference resolves to an existing file.
type Assets interface {
	Exists(ref string) bool
}

// DirAssets resolves media references against a media root directory.
type DirAssets struct {
	root string
	fsys fs.FS
}

// NewDirAssets creates an asset library rooted at dir.
func NewDirAssets(dir string) *DirAssets {
	return &DirAssets{root: dir, fsys: os.DirFS(dir)}
}

// Exists implements Assets. References escaping the root never exist.
func (d *DirAssets) Exists(ref string) bool {
	name, ok := cleanRef(ref)
	if !ok {
		return false
	}
	info, err := fs.Stat(d.fsys, name)
	return err == nil && !info.IsDir()
}

// Path returns the absolute filesystem path of a media reference.
func (d *DirAssets) Path(ref string) string {
	name, ok := cleanRef(ref)
	if !ok {
		return ""
	}
	return filepath.Join(d.root, filepath.FromSlash(name))
}

// Open reads a media reference.
func (d *DirAssets) Open(ref string) ([]byte, error) {
	name, ok := cleanRef(ref)
	if !ok {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(d.fsys, name)
}

func cleanRef(ref string) (string, bool) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "\\", "/"))
	if ref == "" {
		return "", false
	}
	name := path.Clean(strings.TrimPrefix(ref, "/"))
	if !fs.ValidPath(name) || name == "." {
		return "", false
	}
	return name, true
}

// StaticAssets is a fixed set of existing references.
type StaticAssets map[string]bool

// Exists implements Assets.
func (s StaticAssets) Exists(ref string) bool {
	return s[ref]
}
