package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPair(t *testing.T) {
	a, b := NewPair(2)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, []byte{1}))
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)

	require.NoError(t, b.Send(ctx, []byte{2}))
	got, err = a.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got)
}

func TestFullBufferLoses(t *testing.T) {
	a, b := NewPair(1)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, []byte{1}))
	require.NoError(t, a.Send(ctx, []byte{2}))

	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = b.Receive(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Len(t, a.Sent(), 2)
}

func TestDrop(t *testing.T) {
	a, b := NewPair(4)
	a.SetDrop(func(data []byte) bool { return data[0] == 0xFF })
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, []byte{0xFF}))
	require.NoError(t, a.Send(ctx, []byte{0x01}))

	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got)
}

func TestClose(t *testing.T) {
	a, b := NewPair(1)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Receive(context.Background())
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, b.Send(context.Background(), []byte{1}))
	assert.NoError(t, a.Send(context.Background(), []byte{1}))
}
