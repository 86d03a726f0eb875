package flowise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/architect-ai/flowise-go/flowise/pkg/constants"
)

// Stream is a single-pass iterator over a streaming flow response. Each Next
// call reads the next available chunk from the underlying body and returns it
// as UTF-8 text; empty reads are skipped so every yielded chunk is nonempty.
// A Stream cannot be restarted; re-running the flow requires a new request.
// It is owned by one consumer and is not safe for concurrent Next calls.
type Stream struct {
	body        io.ReadCloser
	buf         []byte
	timeoutSecs int
	closed      bool
	eof         bool
	err         error
}

type streamRead struct {
	n   int
	err error
}

func newStream(body io.ReadCloser, timeoutSecs int) *Stream {
	return &Stream{
		body:        body,
		buf:         make([]byte, constants.StreamBufferSize),
		timeoutSecs: timeoutSecs,
	}
}

// Next blocks until the next chunk is available, for at most the configured
// timeout. The boolean reports whether the chunk is valid; it is false once
// the stream is exhausted or failed. A read that outlasts the timeout fails
// with a timeout-kind error; context cancellation stops the read as well.
func (s *Stream) Next(ctx context.Context) (string, bool, error) {
	if s.closed || s.eof {
		return "", false, s.err
	}

	timer := time.NewTimer(time.Duration(s.timeoutSecs) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.err = ctx.Err()
			s.Close()
			return "", false, s.err
		default:
		}

		// The read runs in its own goroutine so a stalled body can be
		// abandoned; Close unblocks it and the buffered channel lets it
		// exit.
		result := make(chan streamRead, 1)
		go func() {
			n, err := s.body.Read(s.buf)
			result <- streamRead{n: n, err: err}
		}()

		select {
		case <-ctx.Done():
			s.err = ctx.Err()
			s.Close()
			return "", false, s.err
		case <-timer.C:
			s.err = newError(
				ErrorKindTimeout,
				fmt.Sprintf("stream read timed out after %d seconds", s.timeoutSecs),
			)
			s.Close()
			return "", false, s.err
		case res := <-result:
			if res.n > 0 {
				chunk := string(s.buf[:res.n])
				if res.err != nil {
					// Deliver the final chunk now; the terminal
					// state surfaces on the next call.
					if errors.Is(res.err, io.EOF) {
						s.eof = true
					} else {
						s.err = newError(ErrorKindConnection, "failed to read stream chunk", withCause(res.err))
					}
					s.Close()
				}
				return chunk, true, nil
			}

			if res.err != nil {
				s.Close()
				if errors.Is(res.err, io.EOF) {
					return "", false, nil
				}
				s.err = newError(ErrorKindConnection, "failed to read stream chunk", withCause(res.err))
				return "", false, s.err
			}
			// Empty read without error: keep polling.
		}
	}
}

// Close releases the underlying response body. It is safe to call more than
// once and after the stream is exhausted.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
