package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	_ "modernc.org/sqlite"
)

var ErrIndex = errors.New("document index failed")

const (
	defaultTopK    = 3
	embedBatchSize = 64
	MetaSource     = "source"
	MetaChunk      = "chunk"
	MetaScore      = "score"
)

// Passage is one chunk of an ingested document.
type Passage struct {
	Source  string
	Chunk   int
	Content string
}

// Index stores passage embeddings in SQLite and answers cosine top-k queries.
// It implements the eino retriever.Retriever interface.
type Index struct {
	db       *sql.DB
	embedder embedding.Embedder
	path     string
}

var _ retriever.Retriever = (*Index)(nil)

// Exists reports whether an index file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Open opens (or creates) the index database at path and runs migrations.
func Open(path string, embedder embedding.Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrIndex, err)
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: pragma: %v", ErrIndex, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrIndex, err)
	}
	return &Index{db: db, embedder: embedder, path: path}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrIndex, err)
	}
	return n, nil
}

// Replace swaps the whole content of the index for passages. Embeddings are
// computed before the transaction starts, so a failed embedding call leaves
// the previous content in place.
func (x *Index) Replace(ctx context.Context, passages []Passage) error {
	vectors, err := x.embedAll(ctx, passages)
	if err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIndex, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM passages"); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrIndex, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO passages (id, source, chunk, content, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrIndex, err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, p := range passages {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), p.Source, p.Chunk, p.Content, float32ToBytes(vectors[i]), now); err != nil {
			return fmt.Errorf("%w: insert: %v", ErrIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIndex, err)
	}
	return nil
}

func (x *Index) embedAll(ctx context.Context, passages []Passage) ([][]float64, error) {
	out := make([][]float64, 0, len(passages))
	for start := 0; start < len(passages); start += embedBatchSize {
		end := min(start+embedBatchSize, len(passages))
		texts := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			texts = append(texts, p.Content)
		}
		vecs, err := x.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrEmbeddingService, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", contractx.ErrEmbeddingService, len(texts), len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Retrieve returns the passages most similar to query, best first.
// retriever.WithTopK sets how many; the default is 3.
func (x *Index) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := defaultTopK
	o := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if o.TopK != nil && *o.TopK > 0 {
		topK = *o.TopK
	}

	vecs, err := x.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrEmbeddingService, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", contractx.ErrEmbeddingService, len(vecs))
	}
	queryVec := toFloat32(vecs[0])

	rows, err := x.db.QueryContext(ctx, "SELECT id, source, chunk, content, embedding FROM passages")
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrIndex, err)
	}
	defer rows.Close()

	type candidate struct {
		doc   *schema.Document
		score float32
	}
	var candidates []candidate
	for rows.Next() {
		var (
			id, source, content string
			chunk               int
			blob                []byte
		)
		if err := rows.Scan(&id, &source, &chunk, &content, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrIndex, err)
		}
		candidates = append(candidates, candidate{
			doc: &schema.Document{
				ID:       id,
				Content:  content,
				MetaData: map[string]any{MetaSource: source, MetaChunk: chunk},
			},
			score: cosineSimilarity(queryVec, bytesToFloat32(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrIndex, err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	result := make([]*schema.Document, 0, min(topK, len(candidates)))
	for i := 0; i < len(candidates) && i < topK; i++ {
		candidates[i].doc.MetaData[MetaScore] = float64(candidates[i].score)
		result = append(result, candidates[i].doc)
	}
	log.Ctx(ctx).Debug().Int("top_k", topK).Int("hits", len(result)).Msg("documentation retrieved")
	return result, nil
}

// cosineSimilarity computes dot(a,b) / (||a|| * ||b||).
// Returns 0 for zero-length vectors, length mismatch, or NaN/Inf results.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))
	if denom == 0 {
		return 0
	}
	result := dot / denom
	if math.IsNaN(float64(result)) || math.IsInf(float64(result), 0) {
		return 0
	}
	return result
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// float32ToBytes stores a vector as little-endian float32 values.
func float32ToBytes(v []float64) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(f)))
	}
	return buf
}

func bytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
