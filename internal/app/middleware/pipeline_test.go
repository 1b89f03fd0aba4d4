package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/commands"
	"rentals/internal/app/middleware"
)

type traceBus struct{ trace *[]string }

func (b traceBus) Dispatch(context.Context, commands.Command) (any, error) {
	*b.trace = append(*b.trace, "handler")
	return "ok", nil
}

func stage(name string, trace *[]string) middleware.CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return tracingBus{name: name, next: next, trace: trace}
	}
}

type tracingBus struct {
	name  string
	next  commands.Bus
	trace *[]string
}

func (b tracingBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	*b.trace = append(*b.trace, b.name)
	return b.next.Dispatch(ctx, cmd)
}

func TestChainCommandsRunsOutermostFirstAndSkipsNil(t *testing.T) {
	var trace []string
	bus := middleware.ChainCommands(traceBus{trace: &trace}, stage("idempotency", &trace), nil, stage("transaction", &trace))

	out, err := bus.Dispatch(context.Background(), countCommand{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"idempotency", "transaction", "handler"}, trace)
}
