package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/rs/zerolog/log"
	domainx "github.com/tanpawarit/odoo-assistant/agent/agents/domain"
	routerx "github.com/tanpawarit/odoo-assistant/agent/agents/router"
	classifierx "github.com/tanpawarit/odoo-assistant/agent/classifier"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	llmx "github.com/tanpawarit/odoo-assistant/agent/llm"
	promptx "github.com/tanpawarit/odoo-assistant/agent/prompt"
	toolx "github.com/tanpawarit/odoo-assistant/agent/tool"
	auditx "github.com/tanpawarit/odoo-assistant/pkg/audit"
	configx "github.com/tanpawarit/odoo-assistant/pkg/config"
	odoox "github.com/tanpawarit/odoo-assistant/pkg/odoo"
	openrouterx "github.com/tanpawarit/odoo-assistant/pkg/openrouter"
	"github.com/tanpawarit/odoo-assistant/pkg/vectorindex"
	"github.com/tanpawarit/odoo-assistant/server"
)

const (
	odooModeRemote = "remote"
	odooModeMemory = "memory"
)

type AppConfig struct {
	ClassifierMode string `envconfig:"CLASSIFIER_MODE" default:"keywords"`
	DefaultDomain  string `envconfig:"DEFAULT_DOMAIN"`
	OdooMode       string `envconfig:"ODOO_MODE" default:"remote"`

	TopK          int `envconfig:"TOP_K" default:"3"`
	MaxToolRounds int `envconfig:"MAX_TOOL_ROUNDS" default:"5"`
	StreamBuffer  int `envconfig:"STREAM_BUFFER" default:"8"`
	HistoryTurns  int `envconfig:"HISTORY_TURNS" default:"0"`

	IndexPath      string `envconfig:"INDEX_PATH" default:"data/docs.db"`
	DocsPath       string `envconfig:"DOCS_PATH" default:"docs"`
	ChunkSize      int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap   int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	IngestSchedule string `envconfig:"INGEST_SCHEDULE"`
}

// TranscriptionConfig points at an OpenAI compatible Whisper endpoint.
// Voice routes are disabled without an API key.
type TranscriptionConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	Model   string        `envconfig:"MODEL" split_words:"true" default:"whisper-1"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

func (c AppConfig) splitter() vectorindex.Splitter {
	return vectorindex.Splitter{Size: c.ChunkSize, Overlap: c.ChunkOverlap}
}

type app struct {
	cfg         AppConfig
	catalog     promptx.Catalog
	router      *routerx.Router
	actions     *toolx.ActionSet
	transcriber *openrouterx.Transcriber
	embedder    embedding.Embedder
	index       *vectorindex.Index
	// indexCreated is set when Open had to create the index file.
	indexCreated bool
	audit        *auditx.Store
}

// wireApp builds every handle the commands need. withIndex controls whether
// the document index is opened; a missing embedder disables it.
func wireApp(ctx context.Context, withIndex bool) (*app, error) {
	cfg, err := configx.New[AppConfig]("")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	a := &app{cfg: *cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	catalog, err := promptx.LoadCatalog()
	if err != nil {
		return nil, err
	}
	if d := strings.TrimSpace(cfg.DefaultDomain); d != "" {
		if catalog, err = catalog.WithDefault(contractx.ParseDomain(d)); err != nil {
			return nil, err
		}
	}
	a.catalog = catalog
	prompts, err := promptx.LoadPromptSet(catalog)
	if err != nil {
		return nil, err
	}

	mode, err := classifierx.ParseMode(cfg.ClassifierMode)
	if err != nil {
		return nil, err
	}

	a.embedder = wireEmbedder()
	if mode == classifierx.ModeEmbedding && a.embedder == nil {
		return nil, fmt.Errorf("%w: embedding classifier needs EMBEDDING_API_KEY", contractx.ErrValidation)
	}

	store, err := wireRecordStore(cfg.OdooMode)
	if err != nil {
		return nil, err
	}
	if a.actions, err = toolx.NewActionSet(store); err != nil {
		return nil, err
	}

	var docs retriever.Retriever
	if withIndex && a.embedder != nil {
		a.indexCreated = !vectorindex.Exists(cfg.IndexPath)
		if a.index, err = vectorindex.Open(cfg.IndexPath, a.embedder); err != nil {
			return nil, err
		}
		docs = a.index
	}

	var recorder contractx.ActionRecorder
	auditCfg, err := configx.New[auditx.Config]("AUDIT")
	if err != nil {
		return nil, fmt.Errorf("load audit config: %w", err)
	}
	if auditCfg.Enabled() {
		if a.audit, err = auditx.Open(ctx, *auditCfg); err != nil {
			return nil, err
		}
		recorder = a.audit
	}

	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}

	agents, err := domainx.NewRegistry(ctx, domainx.RegistryConfig{
		Catalog:       catalog,
		Prompts:       prompts,
		Models:        domainx.OpenRouterModels(*llmCfg),
		Actions:       a.actions,
		Retriever:     docs,
		Recorder:      recorder,
		TopK:          cfg.TopK,
		MaxToolRounds: cfg.MaxToolRounds,
		StreamBuffer:  cfg.StreamBuffer,
		HistoryTurns:  cfg.HistoryTurns,
	})
	if err != nil {
		return nil, err
	}

	classifier, err := classifierx.New(ctx, mode, catalog, a.embedder)
	if err != nil {
		return nil, err
	}
	if a.router, err = routerx.New(classifier, server.SerializeAgents(agents), catalog.Names()); err != nil {
		return nil, err
	}

	a.transcriber = wireTranscriber()

	log.Info().
		Str("classifier", string(mode)).
		Str("default_domain", string(catalog.Default)).
		Bool("docs", docs != nil).
		Bool("audit", recorder != nil).
		Bool("voice", a.transcriber != nil).
		Msg("assistant wired")
	ok = true
	return a, nil
}

// wireIndex opens only what ingestion needs.
func wireIndex() (*app, error) {
	cfg, err := configx.New[AppConfig]("")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	emb := wireEmbedder()
	if emb == nil {
		return nil, fmt.Errorf("%w: ingestion needs EMBEDDING_API_KEY", contractx.ErrValidation)
	}
	idx, err := vectorindex.Open(cfg.IndexPath, emb)
	if err != nil {
		return nil, err
	}
	return &app{cfg: *cfg, embedder: emb, index: idx}, nil
}

func wireEmbedder() embedding.Embedder {
	embCfg, err := configx.New[openrouterx.EmbeddingConfig]("EMBEDDING")
	if err != nil {
		log.Warn().Err(err).Msg("embedding config invalid; embeddings disabled")
		return nil
	}
	if strings.TrimSpace(embCfg.APIKey) == "" {
		return nil
	}
	emb, err := openrouterx.NewEmbedder(*embCfg)
	if err != nil {
		log.Warn().Err(err).Msg("embeddings disabled")
		return nil
	}
	return emb
}

func wireTranscriber() *openrouterx.Transcriber {
	tCfg, err := configx.New[TranscriptionConfig]("WHISPER")
	if err != nil || strings.TrimSpace(tCfg.APIKey) == "" {
		return nil
	}
	client, err := openrouterx.NewClient(openrouterx.Config{
		BaseURL: tCfg.BaseURL,
		APIKey:  tCfg.APIKey,
		Timeout: tCfg.Timeout,
	})
	if err != nil {
		log.Warn().Err(err).Msg("transcription disabled")
		return nil
	}
	t, err := openrouterx.NewTranscriber(client, tCfg.Model)
	if err != nil {
		log.Warn().Err(err).Msg("transcription disabled")
		return nil
	}
	return t
}

func wireRecordStore(mode string) (contractx.RecordStore, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", odooModeRemote:
		odooCfg, err := configx.New[odoox.Config]("ODOO")
		if err != nil {
			return nil, fmt.Errorf("load odoo config: %w", err)
		}
		client, err := odoox.New(*odooCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case odooModeMemory:
		log.Warn().Msg("using in-memory record store; nothing reaches Odoo")
		return odoox.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown ODOO_MODE %q", contractx.ErrValidation, mode)
	}
}

func (a *app) serverDeps() server.Deps {
	deps := server.Deps{Router: a.router, Search: a.actions}
	if a.transcriber != nil {
		deps.Transcriber = a.transcriber
	}
	return deps
}

func (a *app) Close() error {
	var errs []error
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	return errors.Join(errs...)
}
