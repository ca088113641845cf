package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/asesorlegal/backend/internal/api"
	"github.com/asesorlegal/backend/internal/auth"
	"github.com/asesorlegal/backend/internal/config"
	"github.com/asesorlegal/backend/internal/core"
	"github.com/asesorlegal/backend/internal/extract"
	"github.com/asesorlegal/backend/internal/llm"
	"github.com/asesorlegal/backend/internal/ocr/tesseract"
	"github.com/asesorlegal/backend/internal/store"
	"github.com/asesorlegal/backend/internal/usage"
)

// interactionStore is what the server needs from a store backend.
type interactionStore interface {
	usage.Store
	Stats(ctx context.Context) (*store.UsageStats, error)
	Close() error
}

func main() {
	// Command line flag for issuing development tokens
	issueToken := flag.String("issue-token", "", "Print a signed token for the given user id (AUTH_PROVIDER=jwt) and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup logging
	setupLogger(cfg)

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken); err != nil {
			slog.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printToken(cfg *config.Config, subject string) error {
	if cfg.AuthProvider != config.AuthJWT {
		return fmt.Errorf("-issue-token requires AUTH_PROVIDER=%s", config.AuthJWT)
	}
	token, err := auth.NewJWTVerifier(cfg.JWTSecret).GenerateJWT(subject, "", 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Firebase backs both the identity verifier and the hosted store
	var app *firebase.App
	if cfg.AuthProvider == config.AuthFirebase || cfg.StoreBackend == config.StoreFirestore {
		var err error
		app, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID},
			option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccount)))
		if err != nil {
			return fmt.Errorf("failed to initialize firebase: %w", err)
		}
	}

	verifier, err := newVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	// Initialize interaction store
	interactions, err := newStore(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer interactions.Close()

	if stats, err := interactions.Stats(ctx); err != nil {
		slog.Warn("could not read usage stats", "error", err)
	} else {
		slog.Info("usage stats loaded", "total_consultas", stats.TotalConsultas, "backend", cfg.StoreBackend)
	}

	// Initialize LLM client
	client, closeLLM, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize llm client: %w", err)
	}
	defer closeLLM()

	recorder := usage.NewRecorder(interactions,
		usage.WithQueueSize(cfg.Limits.UsageQueueSize),
		usage.WithWriteTimeout(cfg.Limits.UsageWriteTimeout),
	)

	slog.Info("ocr engine ready", "tesseract", tesseract.Version(), "languages", cfg.Limits.OCRLanguages)
	extractor := extract.New(tesseract.New(), cfg.Limits.OCRLanguages)

	chatService := core.NewChatService(client, recorder, core.Settings{
		Params: llm.Params{
			Temperature:      cfg.ChatTemperature,
			MaxTokens:        cfg.ChatMaxTokens,
			PresencePenalty:  cfg.ChatPresencePenalty,
			FrequencyPenalty: cfg.ChatFrequencyPenalty,
		},
		Timeout:         cfg.ModelTimeout,
		MaxMessageChars: cfg.Limits.MaxMessageChars,
	})
	documentService := core.NewDocumentService(client, extractor, recorder, core.Settings{
		Params: llm.Params{
			Temperature: cfg.DocumentTemperature,
			MaxTokens:   cfg.DocumentMaxTokens,
		},
		Timeout:  cfg.ModelTimeout,
		MaxFiles: cfg.Limits.MaxUploadFiles,
	})

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, documentService, auth.NewGate(verifier), cfg)
	router := api.NewRouter(apiHandler, cfg)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // multi-file uploads
		WriteTimeout:      cfg.ModelTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", serverAddr, "env", cfg.Environment, "llm", cfg.LLMProvider, "auth", cfg.AuthProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serveErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		slog.Warn("usage queue not fully drained", "error", err, "dropped", recorder.Dropped())
	}
	slog.Info("server exiting gracefully",
		"interactions_written", recorder.Written(),
		"interactions_failed", recorder.Failures(),
	)
	return nil
}

func newVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (auth.Verifier, error) {
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
		}
		return auth.NewFirebaseVerifier(client), nil
	case config.AuthJWT:
		slog.Warn("using self-signed JWT authentication")
		return auth.NewJWTVerifier(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth provider: %s", cfg.AuthProvider)
	}
}

func newStore(ctx context.Context, cfg *config.Config, app *firebase.App) (interactionStore, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize firestore: %w", err)
		}
		return store.NewFirestoreStore(client), nil
	case config.StoreSQLite:
		s, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
