package stream

import (
	"context"
	"errors"
	"io"
)

// TokenStream is the model service's delta stream. Recv returns io.EOF
// after the final delta.
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// Sink receives transformed deltas in arrival order.
type Sink func(textDelta string)

// Pipe drains the token stream through a Transformer into the sink,
// preserving delta order. It stops promptly when ctx is canceled so an
// aborted caller does not keep the model connection busy. Deltas that
// normalize to nothing are not forwarded.
func Pipe(ctx context.Context, ts TokenStream, sink Sink) error {
	defer ts.Close()

	t := NewTransformer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delta, err := ts.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if out := t.Apply(delta); out != "" {
			sink(out)
		}
	}
}
