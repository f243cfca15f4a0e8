package server

import "go.uber.org/zap"

// NewLogger builds the process-wide logger. Production gets sampled
// JSON output, everything else the human-readable development encoder.
func NewLogger(env string) (*zap.Logger, error) {
	if env == EnvProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
