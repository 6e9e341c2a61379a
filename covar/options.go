package covar

import "github.com/cwbudde/algo-cryoem/blkdiag"

// Config controls the numerical policy of the estimators.
type Config struct {
	// CondLimit is the per-block condition-number limit beyond which a
	// linear system is treated as singular.
	CondLimit float64
	// PseudoInverse substitutes a truncated-SVD pseudo-inverse for singular
	// blocks instead of failing.
	PseudoInverse bool
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default policy: hard failure on singular blocks
// at the blkdiag default condition limit.
func DefaultConfig() Config {
	return Config{CondLimit: blkdiag.DefaultCondLimit}
}

// WithCondLimit sets the condition-number limit for singularity detection.
func WithCondLimit(limit float64) Option {
	return func(cfg *Config) {
		if limit > 0 {
			cfg.CondLimit = limit
		}
	}
}

// WithPseudoInverse enables or disables the pseudo-inverse fallback for
// singular blocks.
func WithPseudoInverse(enable bool) Option {
	return func(cfg *Config) {
		cfg.PseudoInverse = enable
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg Config) solveOptions() []blkdiag.SolveOption {
	return []blkdiag.SolveOption{
		blkdiag.WithCondLimit(cfg.CondLimit),
		blkdiag.WithPseudoInverse(cfg.PseudoInverse),
	}
}
