package observability

import (
	"log/slog"

	"github.com/couchcryptid/dst-accident-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT. Every
// record carries the run_id of this invocation, so the lines of one batch run
// can be pulled out of a shared log stream.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("run_id", uuid.NewString())
}
