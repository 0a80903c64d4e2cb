package notifications

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHubRegisterEnforcesCaps(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub()
	h.maxPerUser = 2
	h.maxTotal = 3

	_, err := h.Register(1, nil)
	require.NoError(t, err)
	_, err = h.Register(1, nil)
	require.NoError(t, err)

	_, err = h.Register(1, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = h.Register(2, nil)
	require.NoError(t, err)

	_, err = h.Register(3, nil)
	assert.ErrorIs(t, err, ErrServerConnLimit)
	assert.Equal(t, 2, h.ConnectionCount(1))
	assert.True(t, h.IsOnline(2))
	assert.False(t, h.IsOnline(3))
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub()
	c, err := h.Register(7, nil)
	require.NoError(t, err)

	h.UnregisterClient(c)
	h.UnregisterClient(c)

	assert.False(t, h.IsOnline(7))
	assert.Equal(t, 0, h.totalConns)

	_, ok := <-c.Send
	assert.False(t, ok, "send channel closed after unregister")
}

func TestHubBroadcastTargetsUser(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub()
	a1, _ := h.Register(1, nil)
	a2, _ := h.Register(1, nil)
	b, _ := h.Register(2, nil)

	h.Broadcast(1, "hello")

	assert.Equal(t, "hello", string(<-a1.Send))
	assert.Equal(t, "hello", string(<-a2.Send))
	assert.Empty(t, b.Send)

	h.BroadcastAll("all")
	assert.Equal(t, "all", string(<-a1.Send))
	assert.Equal(t, "all", string(<-b.Send))
}

func TestHubDispatchRoutesChannels(t *testing.T) {
	h := NewHub()
	a, _ := h.Register(4, nil)
	b, _ := h.Register(5, nil)

	h.Dispatch(UserChannel(4), "direct")
	h.Dispatch(broadcastChannel, "everyone")
	h.Dispatch("notifications:user:abc", "ignored")

	assert.Equal(t, "direct", string(<-a.Send))
	assert.Equal(t, "everyone", string(<-a.Send))
	assert.Equal(t, "everyone", string(<-b.Send))
	assert.Empty(t, b.Send)
}

func TestClientTrySendDropsWhenFull(t *testing.T) {
	h := NewHub()
	c, err := h.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	assert.NotPanics(t, func() { c.TrySend([]byte("overflow")) })
	assert.Len(t, c.Send, sendBuffer)

	h.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
}

func TestClientAnswersPing(t *testing.T) {
	h := NewHub()
	c, err := h.Register(1, nil)
	require.NoError(t, err)

	c.handleFrame([]byte(`{"type":"ping"}`))
	c.handleFrame([]byte(`{"type":"subscribe"}`))
	c.handleFrame([]byte(`not json`))

	require.Len(t, c.Send, 1)
	assert.Contains(t, string(<-c.Send), `"type":"pong"`)
}

func TestHubShutdownRejectsNewConnections(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub()
	_, err := h.Register(1, nil)
	require.NoError(t, err)

	require.NoError(t, h.Shutdown(context.Background()))
	assert.False(t, h.IsOnline(1))

	_, err = h.Register(1, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHubConcurrentRegister(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			c, err := h.Register(id%5+1, nil)
			if err == nil {
				h.Broadcast(c.UserID, "ping")
				h.UnregisterClient(c)
			}
		}(uint(i))
	}
	wg.Wait()
	assert.Equal(t, 0, h.totalConns)
}
