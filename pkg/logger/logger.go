// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger: JSON in prod, console elsewhere. Stack
// traces on routine errors are off; the recover middleware logs its own on
// panic.
func New(env string) *zap.SugaredLogger {
	var z *zap.Logger
	if env == "prod" {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		z, _ = cfg.Build()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Named("agentgate").Sugar()
}
