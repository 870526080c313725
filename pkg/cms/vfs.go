// Package cms holds the content runtime behind the dispatcher: the virtual
// file system, execution contexts, the resource server and the static
// exporter.
package cms

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/joeydtaylor/steeze-cms/pkg/core"
	"github.com/joeydtaylor/steeze-cms/pkg/manifest"
	"github.com/spf13/afero"
)

var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("permission denied")
)

const indexFile = "index.html"

// VFS is the content tree. Reads are checked against the manifest's
// permission rules for the context's principal.
type VFS struct {
	fs        afero.Fs
	perms     []manifest.Permission
	adminRole string
}

func NewVFS(fsys afero.Fs, perms []manifest.Permission, adminRole string) *VFS {
	return &VFS{fs: fsys, perms: perms, adminRole: adminRole}
}

// NewDiskVFS serves the content tree rooted at dir, read-only.
func NewDiskVFS(dir string, perms []manifest.Permission, adminRole string) *VFS {
	return NewVFS(afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), perms, adminRole)
}

// Resolve maps name to a readable file, following directories to their
// index file. It returns the resolved name.
func (v *VFS) Resolve(cms *core.Context, name string) (string, os.FileInfo, error) {
	resolved, info, err := resolveFile(v.fs, name)
	if err != nil {
		return "", nil, err
	}
	if !v.permitted(cms, resolved) {
		return "", nil, ErrForbidden
	}
	return resolved, info, nil
}

// Read returns the content of name as seen by cms.
func (v *VFS) Read(cms *core.Context, name string) ([]byte, os.FileInfo, string, error) {
	resolved, info, err := v.Resolve(cms, name)
	if err != nil {
		return nil, nil, "", err
	}
	b, err := afero.ReadFile(v.fs, resolved)
	if err != nil {
		return nil, nil, "", mapFSError(err)
	}
	return b, info, resolved, nil
}

func (v *VFS) permitted(cms *core.Context, name string) bool {
	role := ""
	if cms != nil {
		role = cms.Principal.Role
	}
	if v.adminRole != "" && role == v.adminRole {
		return true
	}
	for _, p := range v.perms {
		if !underPath(name, p.Path) {
			continue
		}
		ok := false
		for _, r := range p.Roles {
			if r == role {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func resolveFile(fsys afero.Fs, name string) (string, os.FileInfo, error) {
	clean := path.Clean("/" + name)
	info, err := fsys.Stat(clean)
	if err != nil {
		return "", nil, mapFSError(err)
	}
	if info.IsDir() {
		clean = path.Join(clean, indexFile)
		if info, err = fsys.Stat(clean); err != nil {
			return "", nil, mapFSError(err)
		}
		if info.IsDir() {
			return "", nil, ErrNotFound
		}
	}
	return clean, info, nil
}

func mapFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrForbidden
	default:
		return err
	}
}

// underPath reports whether name equals dir or lies below it.
func underPath(name, dir string) bool {
	if dir == "/" || name == dir {
		return true
	}
	return strings.HasPrefix(name, strings.TrimSuffix(dir, "/")+"/")
}

// cutPathPrefix is strings.CutPrefix on path segments: "/export" cuts
// "/export/a" but not "/exports".
func cutPathPrefix(p, prefix string) (string, bool) {
	if !underPath(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" {
		rest = "/"
	}
	return rest, true
}
