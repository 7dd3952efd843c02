package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_RunsHooksInReverseOrder(t *testing.T) {
	s := NewShutdown(testLogger())

	var order []string
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}

	s.Register("database", record("database", nil))
	s.Register("bot", record("bot", errors.New("drain timed out")))
	s.Register("transport", record("transport", nil))
	s.Register("nil", nil)

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot: drain timed out")
	assert.Equal(t, []string{"transport", "bot", "database"}, order)

	s.Register("late", record("late", nil))
	require.NoError(t, s.Execute(context.Background()))
	assert.Len(t, order, 3)
}

type fakeDeps struct{ healthy bool }

func (f fakeDeps) Healthy(context.Context) bool { return f.healthy }

func TestProbes_Readiness(t *testing.T) {
	testCases := []struct {
		name    string
		deps    Dependencies
		ready   bool
		wantErr error
	}{
		{name: "not started", deps: fakeDeps{healthy: true}, ready: false, wantErr: ErrNotReady},
		{name: "ready", deps: fakeDeps{healthy: true}, ready: true},
		{name: "dependency down", deps: fakeDeps{healthy: false}, ready: true, wantErr: ErrNotReady},
		{name: "no dependencies", ready: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := NewProbes(tc.deps, testLogger())
			p.SetReady(tc.ready)

			assert.NoError(t, p.Liveness(context.Background()))
			assert.ErrorIs(t, p.Readiness(context.Background()), tc.wantErr)
		})
	}
}
