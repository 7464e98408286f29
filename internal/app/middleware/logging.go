package middleware

import (
	"context"
	"log/slog"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/pkg/errs"
)

// Logging records every command with its outcome. Invalid transitions are
// logged at error level with a short stack since they point at a caller bug.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		return nil
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			switch {
			case err == nil:
				logger.DebugContext(ctx, "command handled", attrs...)
			case errs.Is(err, errs.ErrInvalidTransition):
				attrs = append(attrs, "error", err, "stack", errs.ExtractStackLines(err, 8))
				logger.ErrorContext(ctx, "command rejected by lifecycle", attrs...)
			case errs.CategoryOf(err) != nil:
				attrs = append(attrs, "error", err, "category", errs.CategoryOf(err).Error())
				logger.InfoContext(ctx, "command failed", attrs...)
			default:
				attrs = append(attrs, "error", err)
				logger.ErrorContext(ctx, "command failed", attrs...)
			}
			return res, err
		})
	}
}
