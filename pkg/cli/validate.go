package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var corporaCfg config.Corpora
	var tuningCfg config.Tuning

	var flags []cli.Flag
	flags = append(flags, corporaCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the corpus configuration and tuning flags",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			if err := tuningCfg.Validate(); err != nil {
				return goerr.Wrap(err, "tuning validation failed")
			}
			logger.Info("Tuning validation passed", "tuning", tuningCfg)

			registry, err := corporaCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "corpus configuration validation failed")
			}

			logger.Info("Corpus configuration validation passed",
				"corpus_count", len(registry.Corpora()),
				"conversation", registry.Conversation(),
			)
			for _, corpus := range registry.Corpora() {
				logger.Info("Corpus validated",
					"id", corpus.ID,
					"kind", corpus.Kind,
					"owner_scoped", corpus.OwnerScoped,
				)
			}

			if corporaCfg.Path() == "" {
				logger.Info("No corpus config file specified, validated the built-in defaults")
			}

			return nil
		},
	}
}
