package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Tuning holds the retrieval and lifecycle knobs. Every value has a
// production default; Validate refuses out-of-range values at startup.
type Tuning struct {
	topK                int
	similarityThreshold float64
	alpha               float64
	cacheTTLHours       int
	sessionTimeoutMin   int
	maxTurnsPerSession  int
	sweepIntervalMin    int
	agingThresholdHours int
	retrievalTimeoutMS  int
	adapterTimeoutMS    int
	indexMaxAttempts    int
	indexBackoffMS      int
	rerank              bool
}

// Flags returns CLI flags for tuning configuration
func (t *Tuning) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Maximum number of retrieval results",
			Value:       10,
			Sources:     cli.EnvVars("MNEMOSYNE_TOP_K"),
			Destination: &t.topK,
		},
		&cli.FloatFlag{
			Name:        "similarity-threshold",
			Usage:       "Minimum fused score for a result to be returned (0..1)",
			Value:       0.7,
			Sources:     cli.EnvVars("MNEMOSYNE_SIMILARITY_THRESHOLD"),
			Destination: &t.similarityThreshold,
		},
		&cli.FloatFlag{
			Name:        "alpha",
			Usage:       "Semantic weight in the fused score (0..1, lexical weight is 1-alpha)",
			Value:       0.6,
			Sources:     cli.EnvVars("MNEMOSYNE_ALPHA"),
			Destination: &t.alpha,
		},
		&cli.IntFlag{
			Name:        "cache-ttl-hours",
			Usage:       "Lifetime of cache-tier entries in hours",
			Value:       24,
			Sources:     cli.EnvVars("MNEMOSYNE_CACHE_TTL_HOURS"),
			Destination: &t.cacheTTLHours,
		},
		&cli.IntFlag{
			Name:        "session-timeout-minutes",
			Usage:       "Idle minutes before a session is promoted and evicted",
			Value:       30,
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION_TIMEOUT_MINUTES"),
			Destination: &t.sessionTimeoutMin,
		},
		&cli.IntFlag{
			Name:        "max-turns-per-session",
			Usage:       "Turn buffer size per session",
			Value:       50,
			Sources:     cli.EnvVars("MNEMOSYNE_MAX_TURNS_PER_SESSION"),
			Destination: &t.maxTurnsPerSession,
		},
		&cli.IntFlag{
			Name:        "sweep-interval-minutes",
			Usage:       "Minutes between promotion sweeps",
			Value:       5,
			Sources:     cli.EnvVars("MNEMOSYNE_SWEEP_INTERVAL_MINUTES"),
			Destination: &t.sweepIntervalMin,
		},
		&cli.IntFlag{
			Name:        "aging-threshold-hours",
			Usage:       "Hours a queued payload waits in the cache tier before durable promotion",
			Value:       1,
			Sources:     cli.EnvVars("MNEMOSYNE_AGING_THRESHOLD_HOURS"),
			Destination: &t.agingThresholdHours,
		},
		&cli.IntFlag{
			Name:        "retrieval-timeout-ms",
			Usage:       "Per-backend retrieval deadline in milliseconds",
			Value:       1500,
			Sources:     cli.EnvVars("MNEMOSYNE_RETRIEVAL_TIMEOUT_MS"),
			Destination: &t.retrievalTimeoutMS,
		},
		&cli.IntFlag{
			Name:        "adapter-timeout-ms",
			Usage:       "Cache operation deadline in milliseconds",
			Value:       500,
			Sources:     cli.EnvVars("MNEMOSYNE_ADAPTER_TIMEOUT_MS"),
			Destination: &t.adapterTimeoutMS,
		},
		&cli.IntFlag{
			Name:        "index-max-attempts",
			Usage:       "Indexing attempts per turn before it is logged as unindexed",
			Value:       5,
			Sources:     cli.EnvVars("MNEMOSYNE_INDEX_MAX_ATTEMPTS"),
			Destination: &t.indexMaxAttempts,
		},
		&cli.IntFlag{
			Name:        "index-backoff-ms",
			Usage:       "Base backoff between indexing attempts in milliseconds",
			Value:       200,
			Sources:     cli.EnvVars("MNEMOSYNE_INDEX_BACKOFF_MS"),
			Destination: &t.indexBackoffMS,
		},
		&cli.BoolFlag{
			Name:        "rerank",
			Usage:       "Enable recency reranking of fused results",
			Sources:     cli.EnvVars("MNEMOSYNE_RERANK"),
			Destination: &t.rerank,
		},
	}
}

// Validate checks that every tuning value is inside its allowed range
func (t *Tuning) Validate() error {
	if t.topK < 1 {
		return goerr.Wrap(ErrInvalidTuning, "top-k must be at least 1",
			goerr.V(FlagKey, "top-k"), goerr.V("value", t.topK))
	}
	if t.similarityThreshold < 0 || t.similarityThreshold > 1 {
		return goerr.Wrap(ErrInvalidTuning, "similarity-threshold must be between 0 and 1",
			goerr.V(FlagKey, "similarity-threshold"), goerr.V("value", t.similarityThreshold))
	}
	if t.alpha < 0 || t.alpha > 1 {
		return goerr.Wrap(ErrInvalidTuning, "alpha must be between 0 and 1",
			goerr.V(FlagKey, "alpha"), goerr.V("value", t.alpha))
	}
	positives := []struct {
		flag  string
		value int
	}{
		{"cache-ttl-hours", t.cacheTTLHours},
		{"session-timeout-minutes", t.sessionTimeoutMin},
		{"max-turns-per-session", t.maxTurnsPerSession},
		{"sweep-interval-minutes", t.sweepIntervalMin},
		{"aging-threshold-hours", t.agingThresholdHours},
		{"retrieval-timeout-ms", t.retrievalTimeoutMS},
		{"adapter-timeout-ms", t.adapterTimeoutMS},
		{"index-max-attempts", t.indexMaxAttempts},
		{"index-backoff-ms", t.indexBackoffMS},
	}
	for _, p := range positives {
		if p.value < 1 {
			return goerr.Wrap(ErrInvalidTuning, "value must be positive",
				goerr.V(FlagKey, p.flag), goerr.V("value", p.value))
		}
	}
	return nil
}

// LogValue returns log attributes for the tuning configuration
func (t Tuning) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("top_k", t.topK),
		slog.Float64("similarity_threshold", t.similarityThreshold),
		slog.Float64("alpha", t.alpha),
		slog.Int("cache_ttl_hours", t.cacheTTLHours),
		slog.Int("session_timeout_minutes", t.sessionTimeoutMin),
		slog.Int("max_turns_per_session", t.maxTurnsPerSession),
		slog.Bool("rerank", t.rerank),
	)
}

func (t *Tuning) TopK() int { return t.topK }

func (t *Tuning) SimilarityThreshold() float64 { return t.similarityThreshold }

func (t *Tuning) Alpha() float64 { return t.alpha }

func (t *Tuning) CacheTTL() time.Duration { return time.Duration(t.cacheTTLHours) * time.Hour }

func (t *Tuning) SessionTimeout() time.Duration {
	return time.Duration(t.sessionTimeoutMin) * time.Minute
}

func (t *Tuning) MaxTurnsPerSession() int { return t.maxTurnsPerSession }

func (t *Tuning) SweepInterval() time.Duration {
	return time.Duration(t.sweepIntervalMin) * time.Minute
}

func (t *Tuning) AgingThreshold() time.Duration {
	return time.Duration(t.agingThresholdHours) * time.Hour
}

func (t *Tuning) RetrievalTimeout() time.Duration {
	return time.Duration(t.retrievalTimeoutMS) * time.Millisecond
}

func (t *Tuning) AdapterTimeout() time.Duration {
	return time.Duration(t.adapterTimeoutMS) * time.Millisecond
}

func (t *Tuning) IndexMaxAttempts() int { return t.indexMaxAttempts }

func (t *Tuning) IndexBackoff() time.Duration {
	return time.Duration(t.indexBackoffMS) * time.Millisecond
}

func (t *Tuning) Rerank() bool { return t.rerank }
