// Package manifest loads the question pool: a manifest listing question
// folders, and one scenario metadata document per question.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/pavelanni/eqarena/internal/model"
)

// Fetcher reads a document by its manifest-relative path.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FSFetcher reads documents from a filesystem such as os.DirFS(dataRoot).
type FSFetcher struct {
	FS fs.FS
}

// Fetch implements Fetcher.
func (f FSFetcher) Fetch(_ context.Context, name string) ([]byte, error) {
	return fs.ReadFile(f.FS, strings.TrimPrefix(name, "/"))
}

// HTTPFetcher reads documents relative to a base URL.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// Fetch implements Fetcher. Non-2xx statuses are errors.
func (f HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	u, err := url.JoinPath(f.BaseURL, strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, fmt.Errorf("build url for %s: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ErrEmpty means neither the manifest nor the fallback produced a question.
var ErrEmpty = errors.New("no questions could be loaded")

// Loader builds the question pool from a manifest.
type Loader struct {
	fetcher      Fetcher
	manifestPath string
	fallbackPath string
}

// NewLoader creates a loader. fallbackPath may be empty.
func NewLoader(f Fetcher, manifestPath, fallbackPath string) *Loader {
	return &Loader{fetcher: f, manifestPath: manifestPath, fallbackPath: fallbackPath}
}

// Load reads the manifest and every metadata document in listed order.
// Items that fail are logged and dropped. If nothing loads, the fallback
// metadata document is tried before giving up with ErrEmpty.
func (l *Loader) Load(ctx context.Context) ([]model.Question, error) {
	var questions []model.Question

	m, err := l.manifest(ctx)
	if err != nil {
		slog.Warn("manifest not available", "path", l.manifestPath, "error", err)
	} else {
		for _, e := range m.Questions {
			meta, err := l.metadata(ctx, e.MetadataPath)
			if err != nil {
				slog.Error("failed to load question", "id", e.ID, "error", err)
				continue
			}
			questions = append(questions, model.Question{ID: e.ID, Path: e.Path, Metadata: meta})
		}
	}

	if len(questions) == 0 && l.fallbackPath != "" {
		meta, err := l.metadata(ctx, l.fallbackPath)
		if err != nil {
			slog.Error("failed to load fallback question", "path", l.fallbackPath, "error", err)
		} else {
			questions = append(questions, model.Question{
				ID:       meta.GenerationMetadata.DatasetID,
				Path:     path.Dir(l.fallbackPath),
				Metadata: meta,
			})
		}
	}

	if len(questions) == 0 {
		return nil, ErrEmpty
	}
	slog.Info("loaded questions", "count", len(questions))
	return questions, nil
}

func (l *Loader) manifest(ctx context.Context) (model.Manifest, error) {
	var m model.Manifest
	data, err := l.fetcher.Fetch(ctx, l.manifestPath)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func (l *Loader) metadata(ctx context.Context, name string) (model.ScenarioMetadata, error) {
	var meta model.ScenarioMetadata
	data, err := l.fetcher.Fetch(ctx, name)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse %s: %w", name, err)
	}
	return meta, nil
}

// Pool loads questions once and serves them to every session.
type Pool struct {
	loader *Loader

	mu        sync.Mutex
	questions []model.Question
}

// NewPool wraps a loader.
func NewPool(l *Loader) *Pool {
	return &Pool{loader: l}
}

// Questions returns the cached pool, loading it on first use. A failed load
// is retried on the next call.
func (p *Pool) Questions(ctx context.Context) ([]model.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.questions != nil {
		return p.questions, nil
	}
	qs, err := p.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.questions = qs
	return qs, nil
}
