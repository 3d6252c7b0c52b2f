// Reportd indexes radiology wiki documents into a vector store and drafts
// report text from the indexed material.
//
// Usage:
//
//	# Ingest a file or a directory tree
//	reportd send /data/wiki/mri/2024/g287-jane-doe.txt
//	reportd send /data/wiki
//
//	# Semantic search over indexed chunks
//	reportd query knee mri effusion
//
//	# Draft report text
//	reportd generate --document reports:mri:2024:g287-jane-doe
//
//	# Run the HTTP API
//	reportd serve
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radwerk/reportd/internal/config"
	"github.com/radwerk/reportd/internal/embeddings"
	"github.com/radwerk/reportd/internal/generate"
	"github.com/radwerk/reportd/internal/identifier"
	"github.com/radwerk/reportd/internal/ingest"
	"github.com/radwerk/reportd/internal/logging"
	"github.com/radwerk/reportd/internal/orchestrator"
	"github.com/radwerk/reportd/internal/prompt"
	"github.com/radwerk/reportd/internal/retrieval"
	"github.com/radwerk/reportd/internal/vectorstore"
)

// Version information (set via ldflags during build).
var version = "dev"

// Global flags. Non-empty values override the loaded configuration.
var (
	flagConfig     string
	flagHost       string
	flagPort       int
	flagTenant     string
	flagDatabase   string
	flagCollection string
	flagLimit      int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "reportd",
	Short:         "Semantic index and report drafting for the radiology wiki",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "path to config file")
	flags.StringVar(&flagHost, "host", "", "vector store host")
	flags.IntVar(&flagPort, "port", 0, "vector store port")
	flags.StringVar(&flagTenant, "tenant", "", "vector store tenant")
	flags.StringVar(&flagDatabase, "database", "", "vector store database")
	flags.StringVar(&flagCollection, "collection", "", "collection name")
	flags.IntVar(&flagLimit, "limit", 5, "maximum number of query results")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagHost != "" {
		cfg.VectorStore.Host = flagHost
	}
	if flagPort != 0 {
		cfg.VectorStore.Port = flagPort
	}
	if flagTenant != "" {
		cfg.VectorStore.Tenant = flagTenant
	}
	if flagDatabase != "" {
		cfg.VectorStore.Database = flagDatabase
	}
	if flagCollection != "" {
		cfg.VectorStore.DefaultCollection = flagCollection
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app holds the wired components for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	parser    *identifier.Parser
	store     *vectorstore.Client
	pipeline  *ingest.Pipeline
	retriever *retrieval.Retriever
	generator *generate.Service
}

// newApp wires the full component graph. Construction contacts the vector
// store to ensure the tenant and database exist.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	parser := identifier.NewParser(identifier.Config{
		BasePath:           cfg.Wiki.BasePath,
		DefaultInstitution: cfg.Wiki.DefaultInstitution,
	})

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embeddings.BaseURL,
		Model:     cfg.Embeddings.Model,
		KeepAlive: cfg.Embeddings.KeepAlive,
		Timeout:   cfg.Embeddings.Timeout.Duration(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedding service: %w", err)
	}

	store, err := vectorstore.NewClient(ctx, vectorstore.Config{
		Host:              cfg.VectorStore.Host,
		Port:              cfg.VectorStore.Port,
		Tenant:            cfg.VectorStore.Tenant,
		Database:          cfg.VectorStore.Database,
		DefaultCollection: cfg.VectorStore.DefaultCollection,
		Timeout:           cfg.VectorStore.Timeout.Duration(),
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}

	pipeline := ingest.NewPipeline(ingest.Config{Extension: cfg.Wiki.Extension},
		parser, store, embedder, logger, ingest.NewMetrics(logger))

	retriever := retrieval.NewRetriever(store, cfg.VectorStore.DefaultCollection, logger)

	prompts := prompt.NewStore(prompt.Config{
		Dir:             cfg.Prompts.Dir,
		DefaultLanguage: cfg.Prompts.DefaultLanguage,
	})

	var generator *generate.Service
	if cfg.Chat.URL != "" {
		chatClient, err := orchestrator.NewClient(orchestrator.ClientConfig{
			URL:         cfg.Chat.URL,
			Model:       cfg.Chat.Model,
			APIKey:      cfg.Chat.APIKey.Value(),
			Temperature: cfg.Chat.Temperature,
			TopP:        cfg.Chat.TopP,
			TopK:        cfg.Chat.TopK,
			MinP:        cfg.Chat.MinP,
			MaxTokens:   cfg.Chat.MaxTokens,
			Timeout:     cfg.Chat.Timeout.Duration(),
		})
		if err != nil {
			return nil, fmt.Errorf("building chat client: %w", err)
		}
		orch := orchestrator.NewOrchestrator(chatClient, retriever, logger)
		generator = generate.NewService(parser, prompts, retriever, orch, logger)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		parser:    parser,
		store:     store,
		pipeline:  pipeline,
		retriever: retriever,
		generator: generator,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
