// Package transport sends request descriptors and reports their outcome
// through a completion callback.
package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/RegistryAccord/discovery-go/internal/request"
)

// Response is a completed exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON response body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Callback receives the outcome of one exchange. Exactly one of the
// arguments is non-nil.
type Callback func(*Response, error)

// Transport starts the exchange described by d. Send must not block on the
// network and must invoke cb exactly once.
type Transport interface {
	Send(ctx context.Context, d *request.Descriptor, cb Callback)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, d *request.Descriptor, cb Callback)

// Send calls f.
func (f Func) Send(ctx context.Context, d *request.Descriptor, cb Callback) { f(ctx, d, cb) }

// Wait adapts Send to a blocking call.
func Wait(ctx context.Context, t Transport, d *request.Descriptor) (*Response, error) {
	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	t.Send(ctx, d, func(resp *Response, err error) { done <- result{resp, err} })
	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
