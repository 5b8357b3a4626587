package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"askdoc/features/document"
	"askdoc/features/query"
	"askdoc/internal/adapter/openai"
	wstore "askdoc/internal/adapter/weaviate"
	"askdoc/internal/config"
	"askdoc/internal/ingest"
	"askdoc/internal/logger"
	"askdoc/internal/middleware"
	"askdoc/internal/retrieval"
	"askdoc/internal/storage"
	"askdoc/internal/synthesis"
	"askdoc/internal/vector"
	"askdoc/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Database Connection
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	for i := 0; i < 10; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", 10)
		time.Sleep(2 * time.Second)
	}
	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// 3. Run Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// 4. Weaviate Connection & Schema
	wClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		slog.Error("failed to create weaviate client", "error", err)
		os.Exit(1)
	}

	schemaClient := vector.NewClientAdapter(wClient)
	for i := 0; i < 10; i++ {
		if err := vector.EnsureSchema(context.Background(), schemaClient); err == nil {
			slog.Info("weaviate schema ensured")
			break
		}
		slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err := vector.EnsureSchema(context.Background(), schemaClient); err != nil {
		slog.Error("failed to ensure weaviate schema after retries", "error", err)
		os.Exit(1)
	}

	// 5. Adapters & Services
	docRepo := document.NewPostgresRepo(db)
	vecStore := wstore.NewStore(wClient, docRepo, cfg.EmbeddingDimension)

	aiClient, err := openai.NewClient(openai.Config{
		BaseURL:        cfg.OpenAIBaseURL,
		APIKey:         cfg.OpenAIAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
		BatchSize:      cfg.EmbedBatchSize,
	})
	if err != nil {
		slog.Error("failed to create openai client", "error", err)
		os.Exit(1)
	}

	localStore, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		slog.Error("failed to initialize upload storage", "error", err)
		os.Exit(1)
	}

	nsqProducer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ producer", "error", err)
		os.Exit(1)
	}

	docService := document.NewService(docRepo, nsqProducer, vecStore)
	docHandler := document.NewHandler(docService, localStore, cfg.MaxUploadSizeMB)

	synthesizer := synthesis.New(aiClient)

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(aiClient, vecStore, synthesizer, queryLogger, cfg.SearchThreshold, cfg.SearchTopK)
	queryHandler := query.NewHandler(retrievalService)

	// 6. Ingest Worker
	if cfg.EnableIngestWorker {
		orchestrator := ingest.NewOrchestrator(docRepo, localStore, ingest.PlainTextExtractor{}, aiClient, vecStore, cfg.ChunkTargetSize, cfg.ChunkOverlap)
		consumer, err := nsq.NewConsumer("ingest.task", "askdoc", nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer", "error", err)
		} else {
			ingestConsumer := worker.NewIngestConsumer(orchestrator)
			consumer.AddHandler(nsq.HandlerFunc(func(msg *nsq.Message) error {
				return ingestConsumer.HandleMessage(msg)
			}))
			if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
				slog.Error("failed to connect to NSQLookupd", "error", err)
			} else {
				slog.Info("NSQ ingest consumer connected")
			}
		}
	}

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	if cfg.EnableAPI {
		http.Handle("POST /documents", middleware.CorrelationID(enableCORS(middleware.Authenticated(docHandler.Upload))))
		http.Handle("GET /documents", middleware.CorrelationID(enableCORS(middleware.Authenticated(docHandler.List))))
		http.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(middleware.Authenticated(docHandler.Get))))
		http.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(middleware.Authenticated(docHandler.Delete))))

		http.Handle("POST /ask", middleware.CorrelationID(enableCORS(middleware.Authenticated(queryHandler.Ask))))
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.ServerPort), nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
