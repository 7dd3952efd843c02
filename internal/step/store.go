// Package step persists the pending step of multi-turn commands keyed by conversation index.
package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/stepbot/internal/platform"
)

// ErrStepNotFound is returned when no readable step exists for an index.
var ErrStepNotFound = errors.New("step: not found")

// Store defines the persistence contract for pending steps.
type Store interface {
	// WriteIfAbsent stores u under index unless a step is already pending. The first write wins.
	WriteIfAbsent(ctx context.Context, index string, u platform.Update) error
	// Exists reports whether a readable step is pending for index.
	Exists(ctx context.Context, index string) (bool, error)
	// Delete removes the step for index. Deleting an absent step is not an error.
	Delete(ctx context.Context, index string) error
	// Get returns the pending update or ErrStepNotFound.
	Get(ctx context.Context, index string) (platform.Update, error)
	// All returns every readable pending step.
	All(ctx context.Context) (map[string]platform.Update, error)
}

func encodeUpdate(u platform.Update) ([]byte, error) {
	data, err := platform.MarshalUpdate(u)
	if err != nil {
		return nil, fmt.Errorf("encode step: %w", err)
	}
	return data, nil
}

// decodeUpdate treats unreadable blobs as absent steps.
func decodeUpdate(log *slog.Logger, index string, data []byte) (platform.Update, error) {
	u, err := platform.UnmarshalUpdate(data)
	if err != nil {
		log.Warn("discarding unreadable step", slog.String("index", index), slog.Any("error", err))
		return nil, ErrStepNotFound
	}
	return u, nil
}

func exists(ctx context.Context, s Store, index string) (bool, error) {
	_, err := s.Get(ctx, index)
	if err != nil {
		if errors.Is(err, ErrStepNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
