package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/agentwatch/digest-bot/internal/composer"
	"github.com/agentwatch/digest-bot/internal/config"
	"github.com/agentwatch/digest-bot/internal/delivery"
	"github.com/agentwatch/digest-bot/internal/llm"
	"github.com/agentwatch/digest-bot/internal/pipeline"
	"github.com/agentwatch/digest-bot/internal/scheduler"
	"github.com/agentwatch/digest-bot/internal/scoring"
	"github.com/agentwatch/digest-bot/internal/search"
	"github.com/agentwatch/digest-bot/internal/sources"
	"github.com/agentwatch/digest-bot/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit")
	flag.Parse()

	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting digest bot")

	srcCfg, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		logrus.Fatalf("Failed to load sources: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// The pipeline must never run against an unmigrated schema.
	if err := st.Migrate(context.Background()); err != nil {
		logrus.Fatalf("Failed to migrate schema: %v", err)
	}

	pipelineService := buildPipeline(cfg, srcCfg, st)

	if *once {
		summary, err := pipelineService.Run(context.Background())
		if err != nil {
			logrus.Errorf("Digest run failed: %v", err)
			os.Exit(1)
		}
		if !summary.Delivered {
			logrus.Info("Run finished with nothing to deliver")
		}
		return
	}

	schedulerService := scheduler.NewService(cfg, pipelineService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(pipelineService)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(pipelineService)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func buildPipeline(cfg *config.Config, srcCfg *config.SourcesConfig, st *store.Store) *pipeline.Service {
	var srcs []sources.Source
	for _, sc := range srcCfg.Sources {
		switch sc.Type {
		case "rss":
			srcs = append(srcs, sources.NewRSSSource(sc.Name, sc.URL, sc.Enabled))
		case "hackernews":
			if sc.Enabled {
				srcs = append(srcs, sources.NewHackerNewsSource(srcCfg.Keywords, cfg.FreshnessWindow))
			}
		default:
			logrus.Warnf("Unsupported source type %q for %s, skipping", sc.Type, sc.Name)
		}
	}

	llmClient := llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey)
	oracle := scoring.NewLLMOracle(llmClient, cfg.ScoringModel, cfg.Topic)
	writer := composer.NewLLMWriter(llmClient, cfg.PostWriterModel, cfg.Topic)

	transport := delivery.NewTelegramTransport(cfg.TelegramBotToken, cfg.TelegramChannel, cfg.TelegramParseMode)
	tracker := delivery.NewTracker(transport, st, delivery.NewEmailNotifier(cfg))

	return pipeline.NewService(cfg, srcCfg, pipeline.Deps{
		Sources:    srcs,
		Repo:       st,
		Scorer:     scoring.NewService(oracle, st),
		Composer:   composer.NewService(writer),
		Deliverer:  tracker,
		Searcher:   search.NewClient(cfg.SearchAPIKey),
		Summarizer: writer,
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(pipelineService *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pipelineService.GetMetrics()))
	}
}

func triggerHandler(pipelineService *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if _, err := pipelineService.Run(context.Background()); err != nil {
				logrus.Errorf("Manual digest trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Digest run triggered"}`))
	}
}
