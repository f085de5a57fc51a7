package vectorindex

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var documentExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".rst": true,
}

type IngestReport struct {
	Files    int
	Passages int
	Duration time.Duration
}

// Splitter configures the recursive splitter used at ingestion. Chunk sizes
// are measured in runes.
type Splitter struct {
	Size    int
	Overlap int
}

func (s Splitter) normalized() Splitter {
	if s.Size <= 0 {
		s.Size = DefaultChunkSize
	}
	if s.Overlap < 0 || s.Overlap >= s.Size {
		s.Overlap = DefaultChunkOverlap
		if s.Overlap >= s.Size {
			s.Overlap = s.Size / 5
		}
	}
	return s
}

// Transformer builds the splitter. Text is cut at paragraph breaks first,
// then lines, sentences and words; separators stay with the text before them.
func (s Splitter) Transformer(ctx context.Context) (document.Transformer, error) {
	s = s.normalized()
	t, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   s.Size,
		OverlapSize: s.Overlap,
		Separators:  []string{"\n\n", "\n", ". ", " "},
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: splitter: %v", contractx.ErrValidation, err)
	}
	return t, nil
}

// Ingest loads every .txt, .md and .rst file below dir, splits them and
// replaces the content of idx with the result.
func Ingest(ctx context.Context, idx *Index, dir string, splitter Splitter) (IngestReport, error) {
	start := time.Now()
	info, err := os.Stat(dir)
	if err != nil {
		return IngestReport{}, fmt.Errorf("%w: docs path: %v", contractx.ErrValidation, err)
	}
	if !info.IsDir() {
		return IngestReport{}, fmt.Errorf("%w: docs path %s is not a directory", contractx.ErrValidation, dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if documentExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return IngestReport{}, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{})
	if err != nil {
		return IngestReport{}, fmt.Errorf("file loader: %w", err)
	}
	split, err := splitter.Transformer(ctx)
	if err != nil {
		return IngestReport{}, err
	}

	var passages []Passage
	for _, path := range files {
		docs, err := loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			return IngestReport{}, fmt.Errorf("load %s: %w", path, err)
		}
		chunks, err := split.Transform(ctx, docs)
		if err != nil {
			return IngestReport{}, fmt.Errorf("split %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		n := 0
		for _, chunk := range chunks {
			content := strings.TrimSpace(chunk.Content)
			if content == "" {
				continue
			}
			passages = append(passages, Passage{Source: filepath.ToSlash(rel), Chunk: n, Content: content})
			n++
		}
	}

	if err := idx.Replace(ctx, passages); err != nil {
		return IngestReport{}, err
	}

	report := IngestReport{Files: len(files), Passages: len(passages), Duration: time.Since(start)}
	log.Ctx(ctx).Info().
		Str("dir", dir).
		Int("files", report.Files).
		Int("passages", report.Passages).
		Dur("duration", report.Duration).
		Msg("document index rebuilt")
	return report, nil
}
