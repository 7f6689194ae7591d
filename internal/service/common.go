package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/repository"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

func orNow(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}

// mapRepoError translates repository sentinels into domain errors.
func mapRepoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicateSerial):
		return apperrors.NewFieldError("serial_number", "a letter with this serial number already exists")
	case errors.Is(err, repository.ErrDuplicateUsername):
		return apperrors.NewFieldError("username", "a user with this username already exists")
	default:
		return err
	}
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.String("subject", event.Subject), zap.Error(err))
	}
}

func nopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// passwordProblem returns the field message for a password that fails the length rules.
func passwordProblem(plain string, min int) string {
	switch err := auth.CheckPasswordLength(plain, min); {
	case errors.Is(err, auth.ErrPasswordTooShort):
		return fmt.Sprintf("password must be at least %d characters", min)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "password must be at most 72 bytes"
	default:
		return ""
	}
}
