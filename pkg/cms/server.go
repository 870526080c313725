package cms

import (
	"bytes"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/joeydtaylor/steeze-cms/pkg/core"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Server is the generic resource server. Previously exported artifacts are
// served from the export store; everything else is read from the VFS as the
// calling principal. Unresolved paths go to the registered not-found
// handler.
type Server struct {
	vfs          *VFS
	exported     afero.Fs
	exportPrefix string
	contexts     *Contexts
	registry     *core.Registry
	log          *zap.Logger
}

func NewServer(vfs *VFS, exported afero.Fs, exportPrefix string, contexts *Contexts, registry *core.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		vfs:          vfs,
		exported:     exported,
		exportPrefix: exportPrefix,
		contexts:     contexts,
		registry:     registry,
		log:          log,
	}
}

func (s *Server) ServeResource(w http.ResponseWriter, r *http.Request) {
	cms, err := s.contexts.InitContext(r, w, "", nil)
	if err != nil {
		s.log.Error("init context", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if rest, ok := cutPathPrefix(r.URL.Path, s.exportPrefix); ok {
		s.serveExported(w, r, rest)
		return
	}

	b, info, name, err := s.vfs.Read(cms, r.URL.Path)
	switch {
	case err == nil:
		http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(b))
	case errors.Is(err, ErrNotFound):
		s.notFound(w, r)
	case errors.Is(err, ErrForbidden):
		if s.contexts.IsGuest(cms) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		s.log.Error("read resource", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// serveExported never serves dot-prefixed names; the exporter stages
// in-progress artifacts under them.
func (s *Server) serveExported(w http.ResponseWriter, r *http.Request, name string) {
	if hiddenPath(name) {
		s.notFound(w, r)
		return
	}
	resolved, info, err := resolveFile(s.exported, name)
	if err != nil {
		s.notFound(w, r)
		return
	}
	b, err := afero.ReadFile(s.exported, resolved)
	if err != nil {
		s.notFound(w, r)
		return
	}
	http.ServeContent(w, r, resolved, info.ModTime(), bytes.NewReader(b))
}

func hiddenPath(name string) bool {
	for _, seg := range strings.Split(path.Clean("/"+name), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if h, ok := s.registry.Lookup(core.NotFoundHandlerName); ok {
		h.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
