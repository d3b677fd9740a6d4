package cancel_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexflow/llmkit/cancel"
)

func TestCancelIdempotent(t *testing.T) {
	tok := cancel.New()
	var fired int32
	tok.OnCancel(func(string) { atomic.AddInt32(&fired, 1) })

	tok.Cancel("r1")
	tok.Cancel("r2")

	assert.Equal(t, "r1", tok.Reason())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.True(t, tok.IsCancelled())
}

func TestOnCancelAfterFireInvokesImmediately(t *testing.T) {
	tok := cancel.New()
	tok.Cancel("done")

	var got string
	tok.OnCancel(func(reason string) { got = reason })
	assert.Equal(t, "done", got)
}

func TestContextCancelledOnTokenCancel(t *testing.T) {
	tok := cancel.New()
	ctx, cancelFn := tok.Context(context.Background())
	defer cancelFn()

	tok.Cancel("user")
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected derived context to be cancelled")
	}
}
