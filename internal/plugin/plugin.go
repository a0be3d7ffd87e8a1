// Package plugin dispatches UI messages to the swatch builder.
//
// Each submitted message runs on its own goroutine and returns an
// [Operation] that completes when the document is committed. Operations
// against one document are serialized.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"tools.zach/dev/swatchbook/internal/palette"
	"tools.zach/dev/swatchbook/internal/swatch"
)

// Message types.
const (
	TypeCreatePalette   = "create-palette"
	TypeCreateComponent = "create-component"
)

var (
	// ErrUnknownMessage is returned for a message type with no handler.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrClosed is returned by operations submitted after Close.
	ErrClosed = errors.New("runner closed")
)

// Message is a request from the UI.
type Message struct {
	Type    string         `json:"type"`
	Palette *palette.Input `json:"palette,omitempty"`
}

// UnmarshalJSON decodes the palette payload with [palette.DecodeJSON] so
// color order is preserved.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Palette json.RawMessage `json:"palette"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Type = raw.Type
	m.Palette = nil
	if len(raw.Palette) == 0 || string(raw.Palette) == "null" {
		return nil
	}
	in, err := palette.DecodeJSON(bytes.NewReader(raw.Palette))
	if err != nil {
		return err
	}
	m.Palette = in
	return nil
}

// MarshalJSON encodes the palette payload with [palette.EncodeJSON].
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	typ, err := json.Marshal(m.Type)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if m.Palette != nil {
		buf.WriteString(`,"palette":`)
		if err := palette.EncodeJSON(&buf, m.Palette); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// ReadMessages decodes a stream of JSON messages from r, calling fn for
// each one until r is exhausted, fn returns an error, or a message fails to
// decode.
func ReadMessages(r io.Reader, fn func(Message) error) error {
	dec := json.NewDecoder(r)
	for {
		var m Message
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode message: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}

// ///////////////////////////////////////////////
// Operation
// ///////////////////////////////////////////////

// Operation is the completion token for one submitted message.
type Operation struct {
	Type   string
	done   chan struct{}
	report *swatch.Report
	err    error
}

func newOperation(typ string) *Operation {
	return &Operation{Type: typ, done: make(chan struct{})}
}

func (op *Operation) finish(report *swatch.Report, err error) {
	op.report, op.err = report, err
	close(op.done)
}

// Done is closed when the operation has finished.
func (op *Operation) Done() <-chan struct{} { return op.done }

// Wait blocks until the operation finishes or ctx is done. The report is nil
// for create-component.
func (op *Operation) Wait(ctx context.Context) (*swatch.Report, error) {
	select {
	case <-op.done:
		return op.report, op.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ///////////////////////////////////////////////
// Runner
// ///////////////////////////////////////////////

// Runner executes messages against a builder.
type Runner struct {
	builder *swatch.Builder
	log     *slog.Logger

	mu     sync.Mutex // serializes document access
	wg     sync.WaitGroup
	closed bool
	state  sync.Mutex // guards closed
}

// NewRunner returns a runner for b. A nil logger uses [slog.Default].
func NewRunner(b *swatch.Builder, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{builder: b, log: log}
}

// Submit starts msg and returns its operation. Unknown types and submissions
// after Close complete immediately with an error.
func (r *Runner) Submit(ctx context.Context, msg Message) *Operation {
	op := newOperation(msg.Type)

	r.state.Lock()
	if r.closed {
		r.state.Unlock()
		op.finish(nil, ErrClosed)
		return op
	}
	r.wg.Add(1)
	r.state.Unlock()

	go func() {
		defer r.wg.Done()
		report, err := r.dispatch(ctx, msg)
		if err != nil {
			r.log.Error("operation failed", "type", msg.Type, "error", err)
		}
		op.finish(report, err)
	}()
	return op
}

func (r *Runner) dispatch(ctx context.Context, msg Message) (*swatch.Report, error) {
	switch msg.Type {
	case TypeCreatePalette, TypeCreateComponent:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Type == TypeCreateComponent {
		_, err := r.builder.CreateComponent(ctx)
		return nil, err
	}
	if msg.Palette == nil {
		return nil, fmt.Errorf("%w: %s without palette", palette.ErrInvalid, msg.Type)
	}
	return r.builder.CreatePalette(ctx, msg.Palette)
}

// Close rejects new submissions and waits for in-flight operations.
func (r *Runner) Close() error {
	r.state.Lock()
	r.closed = true
	r.state.Unlock()
	r.wg.Wait()
	return nil
}
