package importer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Workdir is the per-run temporary directory chunk fragments live in.
// It is created once at run start and must be removed on every exit
// path; a removal failure is a fatal condition surfaced after
// processing.
type Workdir struct {
	Path string
}

// NewWorkdir creates a timestamped run directory under root (the OS
// temp dir when root is empty).
func NewWorkdir(root string) (*Workdir, error) {
	if root == "" {
		root = os.TempDir()
	}

	stamp := time.Now().Format("20060102-150405")
	path, err := os.MkdirTemp(root, "prgload-"+stamp+"-")
	if err != nil {
		return nil, eris.Wrapf(err, "importer: create workdir under %s", root)
	}

	zap.L().Debug("workdir created", zap.String("path", path))
	return &Workdir{Path: path}, nil
}

// FileDir creates and returns a per-source-file fragment directory so
// chunk numbering restarts cleanly for each file.
func (w *Workdir) FileDir(sourceName string) (string, error) {
	stem := sourceName[:len(sourceName)-len(filepath.Ext(sourceName))]
	dir := filepath.Join(w.Path, stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "importer: create fragment dir for %s", sourceName)
	}
	return dir, nil
}

// Remove deletes the workdir and everything in it.
func (w *Workdir) Remove() error {
	if err := os.RemoveAll(w.Path); err != nil {
		return eris.Wrapf(err, "importer: remove workdir %s", w.Path)
	}
	zap.L().Debug("workdir removed", zap.String("path", w.Path))
	return nil
}
