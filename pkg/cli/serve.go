package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/audit"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	embedmock "github.com/secmon-lab/mnemosyne/pkg/service/embedding/mock"
	"github.com/secmon-lab/mnemosyne/pkg/service/indexer"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/secmon-lab/mnemosyne/pkg/service/router"
	"github.com/secmon-lab/mnemosyne/pkg/service/session"
	"github.com/secmon-lab/mnemosyne/pkg/service/summary"
	"github.com/secmon-lab/mnemosyne/pkg/service/worker"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var classifierKind string
	var corporaCfg config.Corpora
	var repoCfg config.Repository
	var cacheCfg config.Cache
	var semanticCfg config.Semantic
	var lexicalCfg config.Lexical
	var geminiCfg config.Gemini
	var sheetsCfg config.Sheets
	var tuningCfg config.Tuning

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MNEMOSYNE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "classifier",
			Usage:       "Query classifier (rule or llm; llm requires --gemini-project)",
			Value:       "rule",
			Sources:     cli.EnvVars("MNEMOSYNE_CLASSIFIER"),
			Destination: &classifierKind,
		},
	}

	// Add shared config flags
	flags = append(flags, corporaCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)
	flags = append(flags, semanticCfg.Flags()...)
	flags = append(flags, lexicalCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, sheetsCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			if err := tuningCfg.Validate(); err != nil {
				return goerr.Wrap(err, "invalid tuning configuration")
			}
			logger.Info("Tuning configuration loaded", "tuning", tuningCfg)

			registry, err := corporaCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load corpus configuration")
			}
			logger.Info("Corpus registry loaded",
				"corpora", registry.IDs(),
				"conversation", registry.Conversation(),
			)

			// Tier backends
			durable, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize durable store")
			}
			defer closeBackend("durable store", repoCfg.Close)

			cache, err := cacheCfg.Configure(tuningCfg.AdapterTimeout())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize cache store")
			}
			defer closeBackend("cache store", cacheCfg.Close)

			semantic, err := semanticCfg.Configure(ctx, &repoCfg)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize semantic index")
			}
			defer closeBackend("semantic index", semanticCfg.Close)

			lexical, err := lexicalCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize lexical index")
			}
			defer closeBackend("lexical index", lexicalCfg.Close)

			// LLM-backed services with deterministic fallbacks
			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}

			var embedder interfaces.Embedder
			var summarizer interfaces.Summarizer
			if llmClient != nil {
				embedder, err = embedding.New(llmClient)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize embedder")
				}
				summarizer, err = summary.New(llmClient)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize summarizer")
				}
				logger.Info("Gemini embedding and summarization enabled")
			} else {
				embedder = embedmock.New()
				summarizer = summary.NewTruncator(0)
				logger.Warn("No Gemini project configured, using mock embedder and truncating summarizer (development only)")
			}

			var classifier interfaces.Classifier
			switch classifierKind {
			case "rule":
				classifier = router.NewRuleClassifier()
			case "llm":
				if llmClient == nil {
					return goerr.New("classifier llm requires gemini-project", goerr.V(config.FlagKey, "classifier"))
				}
				classifier = router.NewLLMClassifier(llmClient)
				logger.Info("LLM query classification enabled")
			default:
				return goerr.New("classifier must be rule or llm",
					goerr.V(config.FlagKey, "classifier"), goerr.V("value", classifierKind))
			}

			// Memory pipeline
			queue, err := worker.NewCacheQueue(cache, worker.WithPayloadTTL(tuningCfg.CacheTTL()))
			if err != nil {
				return goerr.Wrap(err, "failed to create promotion queue")
			}
			sessions := session.New(queue, session.WithMaxTurns(tuningCfg.MaxTurnsPerSession()))

			engine, err := retrieval.New(semantic, lexical,
				retrieval.WithAdapterTimeout(tuningCfg.RetrievalTimeout()),
				retrieval.WithOwnerScopedCorpora(registry.OwnerScopedIDs()...),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create retrieval engine")
			}

			routerOpts := []router.Option{
				router.WithDefaultCorpora(registry.DocumentIDs()...),
				router.WithTargets(types.QueryClassConversational, registry.Conversation()),
				router.WithTargets(types.QueryClassAnalytical, registry.IDs()...),
			}
			if len(registry.Synonyms()) > 0 {
				routerOpts = append(routerOpts, router.WithSynonyms(registry.Synonyms()))
			}
			rt := router.New(classifier, routerOpts...)

			idx, err := indexer.New(semantic, lexical, embedder,
				indexer.WithCorpus(registry.Conversation()),
				indexer.WithMaxAttempts(tuningCfg.IndexMaxAttempts()),
				indexer.WithBackoff(tuningCfg.IndexBackoff()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create indexer")
			}

			// Audit trail
			sinks := []interfaces.AuditSink{audit.NewLogSink(nil)}
			sheetsSink, err := sheetsCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize sheets audit sink")
			}
			if sheetsSink != nil {
				sinks = append(sinks, sheetsSink)
			}
			emitter := audit.New(sinks...)

			ucOpts := []usecase.Option{
				usecase.WithIndexer(idx),
				usecase.WithAudit(emitter),
				usecase.WithCache(cache),
				usecase.WithDurable(durable),
				usecase.WithConversationCorpus(semantic, lexical, registry.Conversation()),
				usecase.WithTopK(tuningCfg.TopK()),
				usecase.WithSimilarityThreshold(tuningCfg.SimilarityThreshold()),
				usecase.WithAlpha(tuningCfg.Alpha()),
			}
			if tuningCfg.Rerank() {
				ucOpts = append(ucOpts, usecase.WithReranker(retrieval.NewReranker()))
				logger.Info("Recency reranking enabled")
			}

			uc, err := usecase.New(sessions, rt, engine, embedder, ucOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create use cases")
			}

			// Background promotion between tiers
			promoter, err := worker.NewPromotionWorker(sessions, cache, durable, summarizer,
				worker.WithInterval(tuningCfg.SweepInterval()),
				worker.WithAgingThreshold(tuningCfg.AgingThreshold()),
				worker.WithSessionIdle(tuningCfg.SessionTimeout()),
				worker.WithRetention(tuningCfg.CacheTTL()),
				worker.WithSummaryIndex(semantic, embedder, registry.Conversation()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create promotion worker")
			}
			if err := promoter.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start promotion worker")
			}

			httpHandler, err := httpctrl.New(uc)
			if err != nil {
				promoter.Stop()
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				promoter.Stop()
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				// Stop the promotion worker first so no sweep races the drain
				promoter.Stop()

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}

func closeBackend(name string, fn func() error) {
	if err := fn(); err != nil {
		logging.Default().Error("failed to close "+name, "error", err.Error())
	}
}
