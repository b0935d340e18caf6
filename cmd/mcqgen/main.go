// Package main is the mcqgen CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/cli"
	"github.com/gk6450/mcq-gen/internal/config"
	"github.com/gk6450/mcq-gen/internal/embedding"
	"github.com/gk6450/mcq-gen/internal/hashing"
	"github.com/gk6450/mcq-gen/internal/indexer"
	"github.com/gk6450/mcq-gen/internal/models"
	"github.com/gk6450/mcq-gen/internal/retrieval"
	"github.com/gk6450/mcq-gen/internal/server"
	"github.com/gk6450/mcq-gen/internal/storage"
	"github.com/gk6450/mcq-gen/internal/vector"
	"github.com/gk6450/mcq-gen/internal/watcher"
	"github.com/gk6450/mcq-gen/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mcqgen/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence (for development); when neither
// exists, built-in defaults apply.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			var cfg config.Config
			config.ApplyDefaults(&cfg)
			return &cfg, nil
		}
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "retrieve":
		runRetrieve()
	case "chapters":
		runChapters()
	case "books":
		runBooks()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("mcqgen version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// components holds initialized services.
type components struct {
	Ledger   storage.Ledger
	Embedder embedding.Embedder
	Gateway  *vector.Gateway
	Pipeline *indexer.Pipeline
	Engine   *retrieval.Engine
}

func (c *components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Gateway != nil {
		_ = c.Gateway.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	ledger, err := storage.NewSQLLedger(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case config.EmbeddingProviderMock:
		embedder = embedding.NewMockEmbedder(0)
	default:
		embedder, err = embedding.NewHFEmbedder(&cfg.Embedding, logger)
		if err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	store, err := vector.NewStore(&cfg.Vector, logger)
	if err != nil {
		_ = ledger.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	gateway := vector.NewGateway(store, cfg.Vector.UpsertBatch, logger)

	chunker := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	pipeline := indexer.NewPipeline(ledger, embedder, gateway, chunker, logger)
	engine := retrieval.NewEngine(ledger, embedder, gateway, cfg.Retrieval.TopK, logger)

	return &components{
		Ledger:   ledger,
		Embedder: embedder,
		Gateway:  gateway,
		Pipeline: pipeline,
		Engine:   engine,
	}, nil
}

func mustSetup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *components) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, comps
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps := mustSetup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var drops *watcher.DropWatcher
	if len(cfg.Watch.Directories) > 0 {
		drops = watcher.NewDropWatcher(
			cfg.Watch.Directories,
			func(path string) { ingestDroppedPDF(comps.Pipeline, logger, path) },
			func(path string) {
				if _, err := comps.Pipeline.Delete(context.Background(), hashing.PathID(path), true); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		if err := drops.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		drops.SyncExistingFiles()
	}

	srv := server.NewServer(comps.Pipeline, comps.Engine, comps.Ledger, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if drops != nil {
		drops.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// ingestDroppedPDF ingests a watched file with a book ID derived from its
// path, so re-drops of the same file update the same book.
func ingestDroppedPDF(pipeline *indexer.Pipeline, logger *zap.Logger, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("watch read failed", zap.String("path", path), zap.Error(err))
		return
	}
	result, err := pipeline.Ingest(context.Background(), indexer.IngestInput{
		BookID: hashing.PathID(path),
		Title:  filepath.Base(path),
		PDF:    content,
	})
	if err != nil {
		logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("watched pdf ingested",
		zap.String("path", path),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	bookID := fs.String("book-id", "", "book ID (generated when empty)")
	title := fs.String("title", "", "book title (defaults to filename)")
	owner := fs.String("owner", "", "book owner")
	chaptersJSON := fs.String("chapters", "", `chapter ranges as JSON, e.g. [{"name":"intro","start_page":1,"end_page":10}]`)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: mcqgen ingest [flags] <file.pdf>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	var chapters []models.ChapterSpec
	if *chaptersJSON != "" {
		if err := json.Unmarshal([]byte(*chaptersJSON), &chapters); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -chapters JSON: %v\n", err)
			os.Exit(1)
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}
	if *title == "" {
		*title = filepath.Base(path)
	}

	_, logger, comps := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	result, err := comps.Pipeline.Ingest(context.Background(), indexer.IngestInput{
		BookID:   *bookID,
		Title:    *title,
		Owner:    *owner,
		PDF:      content,
		Chapters: chapters,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Book %s: %d chunks inserted, %d skipped\n", result.BookID, result.Inserted, result.Skipped)
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	bookID := fs.String("book", "", "book ID to scope the query")
	chapterList := fs.String("chapters", "", "comma-separated chapter names to scope the query")
	topK := fs.Int("top-k", 0, "number of chunks to return (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: mcqgen retrieve [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var chapters []string
	if *chapterList != "" {
		for _, ch := range strings.Split(*chapterList, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				chapters = append(chapters, ch)
			}
		}
	}

	_, logger, comps := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	chunks, err := comps.Engine.Retrieve(context.Background(), *bookID, chapters, query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRetrievedChunks(os.Stdout, chunks, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runChapters() {
	fs := flag.NewFlagSet("chapters", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: mcqgen chapters [flags] <book-id>")
		os.Exit(1)
	}
	bookID := fs.Arg(0)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_, logger, comps := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	chapters, err := comps.Ledger.ListChapters(context.Background(), bookID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List chapters failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteChapters(os.Stdout, bookID, chapters, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runBooks() {
	fs := flag.NewFlagSet("books", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 100, "maximum number of books to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_, logger, comps := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	books, err := comps.Ledger.ListBooks(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List books failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteBooks(os.Stdout, books, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	keepVectors := fs.Bool("keep-vectors", false, "remove ledger rows only, leave index vectors in place")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: mcqgen delete [flags] <book-id>")
		os.Exit(1)
	}
	bookID := fs.Arg(0)

	_, logger, comps := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	result, err := comps.Pipeline.Delete(context.Background(), bookID, !*keepVectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Book %s deleted (vectors: %t, ledger: %t)\n", result.BookID, result.VectorDeleted, result.LedgerDeleted)
}

func printUsage() {
	fmt.Println(`mcqgen - PDF ingestion and retrieval for quiz grounding

Usage:
  mcqgen server [flags]              Start the HTTP API server
  mcqgen ingest [flags] <file.pdf>   Ingest a PDF into the index
  mcqgen retrieve [flags] <query>    Retrieve chunks for a query
  mcqgen chapters [flags] <book-id>  List a book's chapter labels
  mcqgen books [flags]               List ingested books
  mcqgen delete [flags] <book-id>    Delete a book from index and ledger
  mcqgen version                     Show version
  mcqgen help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mcqgen/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --book-id string   Book ID (generated when empty)
  --title string     Book title (defaults to filename)
  --owner string     Book owner
  --chapters string  Chapter ranges as JSON

Retrieve Flags:
  --config string    Config file path
  --book string      Book ID to scope the query
  --chapters string  Comma-separated chapter names
  --top-k int        Number of chunks (0 = config default)
  --output string    Output format: text or json

Delete Flags:
  --config string    Config file path
  --keep-vectors     Remove ledger rows only

Environment:
  HF_API_TOKEN       Hugging Face inference API token (embedding.provider: hf)
  PINECONE_API_KEY   Pinecone API key (vector.provider: pinecone)

Examples:
  mcqgen server
  mcqgen ingest --title "Physics Vol 1" physics.pdf
  mcqgen ingest --chapters '[{"name":"mechanics","start_page":1,"end_page":40}]' physics.pdf
  mcqgen retrieve --book book-123 --chapters mechanics "newton's laws"
  mcqgen chapters book-123
  mcqgen delete book-123`)
}
