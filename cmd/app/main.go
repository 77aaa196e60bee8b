package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/ai"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/analyzer"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/classifier"
	cfgpkg "github.com/uchi736/rag-preprocessing-optimizer/internal/config"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/dispatcher"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/features"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/filetype"
	logpkg "github.com/uchi736/rag-preprocessing-optimizer/internal/logger"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/metrics"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/queue"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/service"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/statuscheck"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/storage"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	results, err := store.NewResultStore(cfg.Queue.RedisURL, cfg.Server.ResultTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init result store")
	}
	defer results.Close()

	var describer *ai.Describer
	if cfg.Analysis.DescribePages {
		describer = ai.NewDescriber(ai.DescriberConfig{
			PrimaryProvider:   cfg.Providers.PrimaryEngine,
			SecondaryProvider: cfg.Providers.SecondaryEngine,
			OpenAIModel:       cfg.Providers.OpenAIModel,
			AnthropicModel:    cfg.Providers.AnthropicModel,
			RequestTimeout:    cfg.Providers.RequestTimeout,
			BreakerCooldown:   cfg.Providers.BreakerCooldown,
			SystemPrompt:      cfg.Providers.SystemPrompt,
		})
	}

	newAnalyzer := func(parallel bool) *analyzer.Analyzer {
		return analyzer.New(analyzer.Options{
			Parallel:      parallel,
			Workers:       cfg.Analysis.Workers,
			OutputDir:     cfg.Analysis.OutputDir,
			DPIMultiplier: cfg.Analysis.DPIMultiplier,
			JPEGQuality:   cfg.Analysis.JPEGQuality,
			Features:      features.DefaultConfig(),
			Classifier:    classifier.DefaultConfig(),
			Describer:     describer,
		})
	}

	checker := statuscheck.New(statuscheck.Options{
		Redis:        rs,
		S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
	})

	svc := service.New(service.Dependencies{
		Queue:   rq,
		Status:  rs,
		Results: results,
		Health:  checker,
	}, service.Options{
		MaxUploadMB: cfg.Server.MaxUploadMB,
		UploadDir:   cfg.Server.WorkDir,
	})
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	// Dispatcher worker (optional, on by default)
	runDispatcher := os.Getenv("RUN_DISPATCHER")
	if runDispatcher == "" || runDispatcher == "1" || runDispatcher == "true" {
		disp := dispatcher.New(dispatcher.Config{
			Concurrency:     cfg.Analysis.Workers,
			DefaultParallel: cfg.Analysis.Parallel,
		}, dispatcher.Dependencies{
			Queue:       rq,
			Status:      rs,
			Results:     results,
			Fetcher:     storage.NewFetcher(cfg.Server.WorkDir, cfg.Server.FetchTimeout),
			Detector:    filetype.New(),
			NewAnalyzer: newAnalyzer,
		})
		disp.Start()
		defer disp.Stop(context.Background())
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
