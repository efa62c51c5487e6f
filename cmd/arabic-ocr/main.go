package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/arabic-ocr/internal/extraction"
	"github.com/zombor/arabic-ocr/internal/scanning"
	"github.com/zombor/arabic-ocr/internal/telegram"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	fs := ff.NewFlagSet("arabic-ocr")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		backend       = fs.StringLong("model-backend", "gemini", "Model backend: 'gemini', 'ollama' or 'tesseract'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY / API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		geminiBaseURL = fs.StringLong("gemini-base-url", "", "Override the Gemini API endpoint (optional)")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name (e.g., qwen2.5vl, llava, gemma3)")
		tesseractLang = fs.StringLong("tesseract-lang", "ara", "Tesseract languages joined with '+' (e.g., ara+eng)")
		historyDB     = fs.StringLong("history-db", "", "Extraction history database path (empty disables history)")
		maxUploadMB   = fs.IntLong("max-upload-mb", 50, "Maximum upload size in megabytes")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		telegramToken = fs.StringLong("telegram-token", "", "Telegram bot token (optional, enables the bot)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("ARABIC_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize model based on backend
	var (
		model scanning.Model
		err   error
	)
	switch *backend {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			apiKey = os.Getenv("API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini model...", "model", *geminiModel)
		model, err = scanning.NewGemini(apiKey, *geminiModel, *geminiBaseURL)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama model...", "url", *ollamaURL, "model", *ollamaModel)
		model, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "tesseract":
		slog.Info("Initializing Tesseract...", "languages", *tesseractLang)
		model = scanning.NewTesseract(strings.Split(*tesseractLang, "+")...)
	default:
		slog.Error("Invalid model backend", "backend", *backend, "valid", "gemini, ollama or tesseract")
		os.Exit(1)
	}
	defer model.Close()

	// Initialize history database; a nil DB disables history
	var db extraction.DB
	if *historyDB != "" {
		slog.Info("Initializing history database...", "path", *historyDB)
		boltDB, err := extraction.NewBoltDB(*historyDB)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer boltDB.Close()
		db = boltDB
	}

	service := extraction.NewService(db, model)

	server := extraction.NewServer(service, extraction.Options{
		BasicAuth: extraction.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		},
		MaxUploadBytes: int64(*maxUploadMB) << 20,
	})
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	g, ctx := errgroup.WithContext(ctx)

	addr := fmt.Sprintf(":%d", *port)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})

	if *telegramToken != "" {
		bot, err := telegram.New(*telegramToken, service)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			return bot.Run(ctx)
		})
	}

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "model", model.Name())

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
