package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

//go:embed static
var embeddedStatic embed.FS

// assetTypes lists the static files served at the root, keyed by name.
var assetTypes = map[string]string{
	"style.css": "text/css; charset=utf-8",
	"script.js": "text/javascript; charset=utf-8",
}

type asset struct {
	body    []byte
	modTime time.Time
	source  string
}

// assetStore keeps the static files in memory. A file present in the
// configured directory shadows the embedded copy.
type assetStore struct {
	mu     sync.RWMutex
	dir    string
	files  map[string]asset
	logger *logrus.Logger
}

func newAssetStore(dir string, logger *logrus.Logger) (*assetStore, error) {
	a := &assetStore{dir: dir, files: make(map[string]asset, len(assetTypes)), logger: logger}
	for name := range assetTypes {
		if err := a.reload(name); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// reload re-reads one asset from disk, falling back to the embedded copy
// when the file does not exist.
func (a *assetStore) reload(name string) error {
	if _, ok := assetTypes[name]; !ok {
		return fmt.Errorf("unknown static asset %q", name)
	}

	next, err := a.read(name)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.files[name] = next
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"asset":  name,
		"source": next.source,
		"size":   len(next.body),
	}).Debug("Static asset loaded")
	return nil
}

func (a *assetStore) read(name string) (asset, error) {
	if a.dir != "" {
		path := filepath.Join(a.dir, name)
		body, err := os.ReadFile(path)
		switch {
		case err == nil:
			return asset{body: body, modTime: time.Now(), source: path}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return asset{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	body, err := embeddedStatic.ReadFile("static/" + name)
	if err != nil {
		return asset{}, fmt.Errorf("failed to read embedded %s: %w", name, err)
	}
	return asset{body: body, modTime: time.Time{}, source: "embedded"}, nil
}

func (a *assetStore) get(name string) (asset, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.files[name]
	return f, ok
}

func (a *assetStore) handler(name string) http.HandlerFunc {
	contentType := assetTypes[name]
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := a.get(name)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		http.ServeContent(w, r, name, f.modTime, bytes.NewReader(f.body))
	}
}
