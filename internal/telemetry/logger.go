package telemetry

import "go.uber.org/zap"

// NewLogger builds the production JSON logger used across the service,
// following the same zap.NewProductionConfig pattern the rest of the
// pack's trading services use, with the level adjustable at startup.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop(), err
	}
	return logger, nil
}
