package cms

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-cms/pkg/core"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ExportEvent announces a freshly written static artifact.
type ExportEvent struct {
	VFSName string    `json:"vfsName"`
	RFSName string    `json:"rfsName"`
	Bytes   int       `json:"bytes"`
	User    string    `json:"user"`
	At      time.Time `json:"at"`
}

// EventPublisher receives export events. Publishing is best effort; a failed
// publish never fails the export.
type EventPublisher interface {
	PublishExport(ctx context.Context, ev ExportEvent) error
}

// Exporter maps request paths under the export prefix onto VFS resources
// and writes them to the export store on demand.
type Exporter struct {
	vfs      *VFS
	out      afero.Fs
	prefix   string
	suffixes []string
	events   EventPublisher
	log      *zap.Logger
}

func NewExporter(vfs *VFS, out afero.Fs, prefix string, suffixes []string, events EventPublisher, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{vfs: vfs, out: out, prefix: prefix, suffixes: suffixes, events: events, log: log}
}

// NewDiskExportStore returns the export store rooted at dir.
func NewDiskExportStore(dir string) afero.Fs {
	return afero.NewBasePathFs(afero.NewOsFs(), dir)
}

func (e *Exporter) ExportData(r *http.Request, cms *core.Context) (*core.ExportData, bool) {
	rest, ok := cutPathPrefix(r.URL.Path, e.prefix)
	if !ok || rest == "/" || hiddenPath(rest) {
		return nil, false
	}
	resolved, _, err := e.vfs.Resolve(cms, rest)
	if err != nil {
		return nil, false
	}
	ext := strings.ToLower(path.Ext(resolved))
	if !e.exportable(ext) {
		return nil, false
	}
	return &core.ExportData{
		VFSName:  resolved,
		RFSName:  resolved,
		MimeType: mime.TypeByExtension(ext),
	}, true
}

func (e *Exporter) exportable(ext string) bool {
	if len(e.suffixes) == 0 {
		return true
	}
	for _, s := range e.suffixes {
		if s == ext {
			return true
		}
	}
	return false
}

// Export writes the artifact to the export store, then to the response.
func (e *Exporter) Export(w http.ResponseWriter, r *http.Request, cms *core.Context, data *core.ExportData) error {
	b, _, _, err := e.vfs.Read(cms, data.VFSName)
	if err != nil {
		return fmt.Errorf("read %s: %w", data.VFSName, err)
	}
	if err := e.write(data.RFSName, b); err != nil {
		return fmt.Errorf("write %s: %w", data.RFSName, err)
	}

	if data.MimeType != "" {
		w.Header().Set("Content-Type", data.MimeType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if e.events != nil {
		ev := ExportEvent{VFSName: data.VFSName, RFSName: data.RFSName, Bytes: len(b), User: cms.Principal.Name, At: time.Now().UTC()}
		if err := e.events.PublishExport(r.Context(), ev); err != nil {
			e.log.Warn("export event not published", zap.String("rfs", data.RFSName), zap.Error(err))
		}
	}
	return nil
}

// write stores b at name through a temp file and rename, so readers never
// see a partial artifact.
func (e *Exporter) write(name string, b []byte) error {
	dir := path.Dir(name)
	if err := e.out.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(e.out, dir, ".export-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = e.out.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = e.out.Remove(tmpName)
		return err
	}
	if err := e.out.Rename(tmpName, name); err != nil {
		_ = e.out.Remove(tmpName)
		return err
	}
	return nil
}
