package authmw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
)

func TestNewStampsTokenOntoMetadata(t *testing.T) {
	var seen fabric.Metadata
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		seen = env.Metadata
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil)}
		close(ch)
		return ch, nil
	}

	mw := New(Static("tok-123"))
	runner := mw(next)

	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1", Metadata: fabric.Metadata{"existing": "x"}})
	require.NoError(t, err)
	<-ch

	assert.Equal(t, "tok-123", seen["auth_token"])
	assert.Equal(t, "x", seen["existing"])
}

func TestNewShortCircuitsOnTokenSourceError(t *testing.T) {
	called := false
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		called = true
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil)}
		close(ch)
		return ch, nil
	}

	mw := New(func(ctx context.Context) (string, error) { return "", errors.New("no credentials") })
	runner := mw(next)

	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.False(t, item.Status.Success)
	assert.Equal(t, fabric.CodeValidationError, item.Status.Code)
	assert.False(t, called)
}
