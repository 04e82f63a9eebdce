package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
)

const metaA = `{
  "scenario": {"title": "A", "context": "ctx", "description": "desc", "speaker1_name": "Ana"},
  "audio_files": [{"audio_path": "data/cat/a/01.mp3", "speaker": "speaker1", "eq_level": ""}],
  "eq_scale": "impulse control"
}`

const metaFallback = `{
  "scenario": {"title": "Fallback"},
  "audio_files": [],
  "generation_metadata": {"dataset_id": "fallback-1"}
}`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"questions.json": {Data: []byte(`{"questions": [
			{"id": "a", "path": "data/cat/a", "metadataPath": "data/cat/a/metadata.json"},
			{"id": "missing", "path": "data/cat/missing", "metadataPath": "data/cat/missing/metadata.json"},
			{"id": "broken", "path": "data/cat/broken", "metadataPath": "/data/cat/broken/metadata.json"},
			{"id": "b", "path": "data/cat/b", "metadataPath": "/data/cat/b/metadata.json"}
		]}`)},
		"data/cat/a/metadata.json":      {Data: []byte(metaA)},
		"data/cat/b/metadata.json":      {Data: []byte(metaA)},
		"data/cat/broken/metadata.json": {Data: []byte(`{not json`)},
		"data/fallback/metadata.json":   {Data: []byte(metaFallback)},
	}
}

func TestLoadSkipsFailedItems(t *testing.T) {
	l := NewLoader(FSFetcher{FS: testFS()}, "questions.json", "")
	qs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("loaded %d questions, want 2", len(qs))
	}
	if qs[0].ID != "a" || qs[1].ID != "b" {
		t.Errorf("order = %s, %s", qs[0].ID, qs[1].ID)
	}
	if qs[0].Metadata.Scenario.Speaker1Name != "Ana" || qs[0].Metadata.EQScale != "impulse control" {
		t.Errorf("metadata not parsed: %+v", qs[0].Metadata)
	}
}

func TestLoadFallback(t *testing.T) {
	fsys := testFS()
	delete(fsys, "questions.json")

	l := NewLoader(FSFetcher{FS: fsys}, "questions.json", "data/fallback/metadata.json")
	qs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "fallback-1" || qs[0].Path != "data/fallback" {
		t.Errorf("fallback question = %+v", qs)
	}
}

func TestLoadEmpty(t *testing.T) {
	l := NewLoader(FSFetcher{FS: fstest.MapFS{}}, "questions.json", "nope.json")
	if _, err := l.Load(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Load() = %v, want ErrEmpty", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.FileServerFS(testFS()))
	defer srv.Close()

	l := NewLoader(HTTPFetcher{BaseURL: srv.URL + "/"}, "questions.json", "")
	qs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("loaded %d questions over HTTP, want 2", len(qs))
	}
}

type countingFetcher struct {
	Fetcher
	calls int
}

func (c *countingFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	c.calls++
	return c.Fetcher.Fetch(ctx, name)
}

func TestPoolCaches(t *testing.T) {
	f := &countingFetcher{Fetcher: FSFetcher{FS: testFS()}}
	p := NewPool(NewLoader(f, "questions.json", ""))

	for range 3 {
		if _, err := p.Questions(context.Background()); err != nil {
			t.Fatalf("Questions: %v", err)
		}
	}
	if f.calls != 5 {
		t.Errorf("fetch calls = %d, want 5 (one load)", f.calls)
	}
}
