package httptransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/transport"
)

func TestParsePath(t *testing.T) {
	m, ok := parsePath("/widgets/create")
	require.True(t, ok)
	assert.Equal(t, "widgets", m.Service)
	assert.Equal(t, "create", m.Operation)

	m, ok = parsePath("/v2/widgets/create")
	require.True(t, ok)
	assert.Equal(t, "v2", m.Version)

	_, ok = parsePath("/onlyone")
	assert.False(t, ok)
}

func TestListenerDispatchesToHandleAndRoundTripsViaTransport(t *testing.T) {
	handle := transport.HandleFunc(func(ctx context.Context, env *fabric.Envelope) *fabric.ResponseItem {
		return &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil), Payload: map[string]any{"echo": env.Method.Operation}}
	})

	// A fixed, arbitrary high port rather than ":0": Listen is built on
	// ListenAndServe, which doesn't expose the ephemeral port net.Listen
	// would have handed back, so the test needs a port it already knows.
	addr := "127.0.0.1:18391"
	l := NewListener(addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go l.Listen(ctx, handle)
	time.Sleep(30 * time.Millisecond)
	defer l.Close()

	tr := New("http://" + addr)
	defer tr.Close()

	ch, err := tr.Send(context.Background(), &fabric.Envelope{
		ID:     "r1",
		Method: method.Method{Service: "widgets", Operation: "create"},
	})
	require.NoError(t, err)
	item := <-ch
	require.True(t, item.Status.Success)

	resp := item.Payload.(map[string]any)
	assert.Equal(t, "create", resp["echo"])
}
