package logging

import "go.uber.org/zap"

// NewLogger builds the process logger: human-readable development output
// for the local environment, JSON production output otherwise.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
