package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/handler"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

const commandTimeout = 10 * time.Second

// WrapWithLogging wraps a command handler with structured logging and a
// best-effort audit record. Audit failures never fail the command.
func WrapWithLogging(logs repositories.CommandLogRepository, name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		start := time.Now()

		slog.Info("Command started",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
		)

		if logs != nil && e.GuildID() != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := logs.Log(ctx, models.CommandLog{
					ServerID: e.GuildID().String(),
					UserID:   e.User().ID.String(),
					Command:  name,
				}); err != nil {
					slog.Warn("Failed to record command audit log",
						slog.String("type", "db"),
						slog.String("name", name),
						slog.Any("error", err))
				}
			}()
		}

		done := make(chan error, 1)
		go func() {
			done <- h(e)
		}()

		select {
		case err := <-done:
			duration := time.Since(start)

			attrs := []any{
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()),
				slog.Duration("took", duration),
			}

			if err != nil {
				slog.Error("Command failed", append(attrs,
					slog.Any("error", err),
					slog.String("status", "failed"),
				)...)
			} else if duration > 2*time.Second {
				slog.Warn("Command executed slowly", append(attrs,
					slog.String("status", "slow"),
				)...)
			} else {
				slog.Info("Command completed", append(attrs,
					slog.String("status", "success"),
				)...)
			}
			return err

		case <-time.After(commandTimeout):
			slog.Error("Command timed out",
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()),
				slog.String("status", "timeout"),
			)
			return fmt.Errorf("command timed out after %s", commandTimeout)
		}
	}
}

// WrapComponentWithLogging is WrapWithLogging for component interactions.
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		start := time.Now()

		done := make(chan error, 1)
		go func() {
			done <- h(e)
		}()

		select {
		case err := <-done:
			attrs := []any{
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()),
				slog.Duration("took", time.Since(start)),
			}
			if err != nil {
				slog.Error("Component interaction failed", append(attrs, slog.Any("error", err))...)
			} else {
				slog.Info("Component interaction completed", attrs...)
			}
			return err

		case <-time.After(commandTimeout):
			slog.Error("Component interaction timed out",
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()))
			return fmt.Errorf("component interaction timed out after %s", commandTimeout)
		}
	}
}
