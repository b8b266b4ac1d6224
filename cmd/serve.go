package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/spf13/cobra"

	"github.com/lanekb/lanekb/api"
	"github.com/lanekb/lanekb/internal/chat"
	"github.com/lanekb/lanekb/internal/config"
	"github.com/lanekb/lanekb/internal/extract"
	"github.com/lanekb/lanekb/internal/index"
	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
	"github.com/lanekb/lanekb/internal/retriever"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowledge base HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: parseLevel(cfg.Log.Level), JSON: cfg.Log.JSON})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Embedding service: Google AI via Genkit, keyed by GEMINI_API_KEY.
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.Embedder.Model)

	store, err := kb.NewStore(cfg.Storage.Root, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}

	processor := extract.NewProcessor(extract.Config{
		ChunkTokens:   cfg.Chunking.ChunkTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}, logger.With("component", "extract"))

	builder := index.NewBuilder(embedder, logger.With("component", "index"))

	manager := kb.NewManager(store, processor, builder, embedder, retriever.Config{
		TopK:      cfg.Retrieval.TopK,
		Overfetch: cfg.Retrieval.Overfetch,
	}, logger.With("component", "kb"))

	transcripts, err := chat.NewTranscriptStore(cfg.Storage.TranscriptsPath)
	if err != nil {
		return fmt.Errorf("opening transcript store: %w", err)
	}
	defer func() {
		_ = transcripts.Close()
	}()

	service := chat.NewService(manager, transcripts, logger.With("component", "chat"))

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	server := api.NewServer(manager, service, logger.With("component", "api"))
	return server.Run(ctx, addr)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
