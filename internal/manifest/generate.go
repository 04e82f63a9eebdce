package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/pavelanni/eqarena/internal/model"
)

const metadataFile = "metadata.json"

// Generate walks dataDir/<category>/<question>/metadata.json inside root and
// returns a manifest sorted by question id. Folders without metadata are skipped.
func Generate(root fs.FS, dataDir string) (model.Manifest, error) {
	var m model.Manifest

	categories, err := fs.ReadDir(root, dataDir)
	if err != nil {
		return m, fmt.Errorf("read %s: %w", dataDir, err)
	}

	for _, cat := range categories {
		if !cat.IsDir() {
			continue
		}
		catPath := path.Join(dataDir, cat.Name())
		folders, err := fs.ReadDir(root, catPath)
		if err != nil {
			return m, fmt.Errorf("read %s: %w", catPath, err)
		}

		count := 0
		for _, qf := range folders {
			if !qf.IsDir() {
				continue
			}
			qPath := path.Join(catPath, qf.Name())
			metaPath := path.Join(qPath, metadataFile)
			if _, err := fs.Stat(root, metaPath); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					slog.Warn("metadata.json not found, skipping", "path", qPath)
					continue
				}
				return m, fmt.Errorf("stat %s: %w", metaPath, err)
			}
			m.Questions = append(m.Questions, model.ManifestEntry{
				ID:           qf.Name(),
				Path:         qPath,
				MetadataPath: metaPath,
			})
			count++
		}
		slog.Info("scanned category", "category", cat.Name(), "questions", count)
	}

	sort.Slice(m.Questions, func(i, j int) bool {
		return m.Questions[i].ID < m.Questions[j].ID
	})
	return m, nil
}

const legacyPrefix = "data/1208_300/"

// AudioURL turns an audio_path from metadata into a URL under base.
// Absolute http(s) URLs are kept, and the legacy export prefix is rewritten.
func AudioURL(base, audioPath string) string {
	p := audioPath
	if strings.HasPrefix(p, legacyPrefix) {
		p = "data/" + strings.TrimPrefix(p, legacyPrefix)
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	base = strings.TrimRight(base, "/")
	return base + "/" + strings.TrimPrefix(p, "/")
}
