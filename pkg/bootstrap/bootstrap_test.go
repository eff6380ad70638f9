package bootstrap

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

func testProcess(exitCode *int) *Process {
	return &Process{
		Logger:  logger.New(logger.Options{ServiceName: "bootstrap-test", Output: io.Discard}),
		service: "bootstrap-test",
		exit:    func(code int) { *exitCode = code },
	}
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	code := -1
	p := testProcess(&code)
	var order []string
	p.OnClose("database", func() error { order = append(order, "database"); return nil })
	p.OnClose("redis", func() error { order = append(order, "redis"); return errors.New("already closed") })

	p.Close(context.Background())
	assert.Equal(t, []string{"redis", "database"}, order)

	p.Close(context.Background())
	assert.Len(t, order, 2)
	assert.Equal(t, -1, code)
}

func TestMustClosesAndExits(t *testing.T) {
	code := -1
	p := testProcess(&code)
	closed := false
	p.OnClose("pubsub", func() error { closed = true; return nil })

	p.Must(context.Background(), "redis", nil)
	assert.Equal(t, -1, code)
	assert.False(t, closed)

	p.Must(context.Background(), "redis", errors.New("dial tcp: refused"))
	assert.Equal(t, 1, code)
	assert.True(t, closed)
}

func TestRunContextCarriesServiceFields(t *testing.T) {
	code := 0
	p := testProcess(&code)
	ctx, stop := p.RunContext()
	defer stop()
	assert.NoError(t, ctx.Err())
}
