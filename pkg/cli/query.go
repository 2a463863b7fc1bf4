package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	embedmock "github.com/secmon-lab/mnemosyne/pkg/service/embedding/mock"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/secmon-lab/mnemosyne/pkg/service/router"
	"github.com/secmon-lab/mnemosyne/pkg/service/session"
	"github.com/secmon-lab/mnemosyne/pkg/service/worker"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdQuery() *cli.Command {
	var userID string
	var corporaCfg config.Corpora
	var repoCfg config.Repository
	var cacheCfg config.Cache
	var semanticCfg config.Semantic
	var lexicalCfg config.Lexical
	var geminiCfg config.Gemini
	var tuningCfg config.Tuning

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "User the query runs as (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_USER_ID"),
			Destination: &userID,
		},
	}

	// Add shared config flags
	flags = append(flags, corporaCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)
	flags = append(flags, semanticCfg.Flags()...)
	flags = append(flags, lexicalCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Run one retrieval query against the configured backends",
		ArgsUsage: "<query text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			queryText := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if queryText == "" {
				return goerr.New("query text is required as an argument")
			}

			if err := tuningCfg.Validate(); err != nil {
				return goerr.Wrap(err, "invalid tuning configuration")
			}

			registry, err := corporaCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load corpus configuration")
			}

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

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}

			var embedder interfaces.Embedder
			if llmClient != nil {
				embedder, err = embedding.New(llmClient)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize embedder")
				}
			} else {
				embedder = embedmock.New()
				logging.Default().Warn("No Gemini project configured, using the mock embedder")
			}

			queue, err := worker.NewCacheQueue(cache, worker.WithPayloadTTL(tuningCfg.CacheTTL()))
			if err != nil {
				return goerr.Wrap(err, "failed to create promotion queue")
			}
			sessions := session.New(queue)

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
			rt := router.New(router.NewRuleClassifier(), routerOpts...)

			uc, err := usecase.New(sessions, rt, engine, embedder,
				usecase.WithCache(cache),
				usecase.WithDurable(durable),
				usecase.WithConversationCorpus(semantic, lexical, registry.Conversation()),
				usecase.WithTopK(tuningCfg.TopK()),
				usecase.WithSimilarityThreshold(tuningCfg.SimilarityThreshold()),
				usecase.WithAlpha(tuningCfg.Alpha()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create use cases")
			}

			owner := types.UserID(userID)
			sess, err := uc.CreateSession(ctx, owner)
			if err != nil {
				return goerr.Wrap(err, "failed to create session")
			}

			bundle, err := uc.Ask(ctx, owner, sess.ID, queryText)
			if err != nil {
				return goerr.Wrap(err, "query failed")
			}

			printBundle(bundle)
			return nil
		},
	}
}

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	rankColor    = color.New(color.FgYellow, color.Bold)
	corpusColor  = color.New(color.FgMagenta)
	scoreColor   = color.New(color.FgGreen)
	faintColor   = color.New(color.Faint)
	warningColor = color.New(color.FgRed, color.Bold)
)

func printBundle(bundle *model.EvidenceBundle) {
	headerColor.Printf("Query: %s\n", bundle.Query)
	fmt.Printf("Class: %s   Elapsed: %s\n", bundle.Class, bundle.RetrievedIn)
	if bundle.Degraded {
		warningColor.Println("Degraded: some backends were unavailable")
	}
	fmt.Println()

	if len(bundle.Results) == 0 {
		faintColor.Println("No results above the similarity threshold.")
	}
	for i, r := range bundle.Results {
		rankColor.Printf("%2d. ", i+1)
		scoreColor.Printf("%.3f ", r.FusedScore)
		corpusColor.Printf("[%s] ", r.CorpusID)
		fmt.Println(r.DocID)

		var legs []string
		if r.SemanticScore != nil {
			legs = append(legs, fmt.Sprintf("semantic %.3f", *r.SemanticScore))
		}
		if r.LexicalScore != nil {
			legs = append(legs, fmt.Sprintf("lexical %.3f", *r.LexicalScore))
		}
		if len(legs) > 0 {
			faintColor.Printf("    %s\n", strings.Join(legs, ", "))
		}
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
	}

	if len(bundle.Summaries) > 0 {
		fmt.Println()
		headerColor.Println("Conversation summaries:")
		for _, s := range bundle.Summaries {
			fmt.Printf("  - %s\n", s)
		}
	}
}
