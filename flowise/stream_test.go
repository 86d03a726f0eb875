package flowise

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-ai/flowise-go/flowise/pkg/constants"
)

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func (r *failingReader) Close() error { return nil }

// stalledReader blocks every Read until the reader is closed.
type stalledReader struct {
	once    sync.Once
	unblock chan struct{}
}

func newStalledReader() *stalledReader {
	return &stalledReader{unblock: make(chan struct{})}
}

func (r *stalledReader) Read(_ []byte) (int, error) {
	<-r.unblock
	return 0, io.EOF
}

func (r *stalledReader) Close() error {
	r.once.Do(func() { close(r.unblock) })
	return nil
}

func TestStream(t *testing.T) {
	t.Run("Should yield the whole body split at buffer boundaries", func(t *testing.T) {
		body := strings.Repeat("a", constants.StreamBufferSize) + "tail"
		stream := newStream(io.NopCloser(strings.NewReader(body)), 60)
		defer stream.Close()

		var out strings.Builder
		for {
			chunk, ok, err := stream.Next(t.Context())
			require.NoError(t, err)
			if !ok {
				break
			}
			assert.NotEmpty(t, chunk)
			assert.LessOrEqual(t, len(chunk), constants.StreamBufferSize)
			out.WriteString(chunk)
		}
		assert.Equal(t, body, out.String())
	})

	t.Run("Should deliver a final chunk arriving together with EOF", func(t *testing.T) {
		stream := newStream(io.NopCloser(strings.NewReader("last")), 60)
		defer stream.Close()

		chunk, ok, err := stream.Next(t.Context())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "last", chunk)

		_, ok, err = stream.Next(t.Context())
		assert.False(t, ok)
		assert.NoError(t, err)
	})

	t.Run("Should surface read failures as connection errors", func(t *testing.T) {
		stream := newStream(&failingReader{data: "partial"}, 60)
		defer stream.Close()

		chunk, ok, err := stream.Next(t.Context())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "partial", chunk)

		_, ok, err = stream.Next(t.Context())
		assert.False(t, ok)
		require.Error(t, err)
		assert.True(t, IsConnectionError(err))
	})

	t.Run("Should time out a stalled read after the configured limit", func(t *testing.T) {
		stream := newStream(newStalledReader(), 1)
		defer stream.Close()

		start := time.Now()
		_, ok, err := stream.Next(t.Context())
		assert.False(t, ok)
		require.Error(t, err)
		assert.True(t, IsTimeoutError(err))
		assert.Contains(t, err.Error(), "1")
		assert.Less(t, time.Since(start), 5*time.Second)

		_, ok, err = stream.Next(t.Context())
		assert.False(t, ok)
		assert.True(t, IsTimeoutError(err))
	})

	t.Run("Should unblock a stalled read on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		stream := newStream(newStalledReader(), 60)
		defer stream.Close()

		start := time.Now()
		_, ok, err := stream.Next(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("Should stop on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		stream := newStream(io.NopCloser(strings.NewReader("data")), 60)
		defer stream.Close()

		_, ok, err := stream.Next(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should allow closing more than once", func(t *testing.T) {
		stream := newStream(io.NopCloser(strings.NewReader("data")), 60)
		require.NoError(t, stream.Close())
		require.NoError(t, stream.Close())

		_, ok, err := stream.Next(t.Context())
		assert.False(t, ok)
		assert.NoError(t, err)
	})
}
