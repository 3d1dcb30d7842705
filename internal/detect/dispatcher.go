package detect

import (
	"context"
	"time"

	"github.com/detectext/detectext/internal/observability"
	"github.com/rs/zerolog/log"
)

// Dispatcher routes a request to one provider or fans it out to all of
// them, and emits one completion event per finished call.
type Dispatcher struct {
	providers map[Engine]Provider
	order     []Provider
	sink      CompletionSink
	timeout   time.Duration
	metrics   *observability.Metrics
}

// NewDispatcher wires the three providers. sink and metrics may be nil.
// timeout bounds each remote call so a hung vendor cannot pin a request
// forever; a timed-out call reports an error result like any other failure.
func NewDispatcher(amazon, google, microsoft Provider, sink CompletionSink, timeout time.Duration, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		providers: map[Engine]Provider{
			EngineAmazon:    amazon,
			EngineGoogle:    google,
			EngineMicrosoft: microsoft,
		},
		order:   []Provider{amazon, google, microsoft},
		sink:    sink,
		timeout: timeout,
		metrics: metrics,
	}
}

// Detect runs the single-provider path for the request's engine.
func (d *Dispatcher) Detect(ctx context.Context, req *Request) Result {
	provider, ok := d.providers[req.Engine]
	if !ok {
		// Router validation happens before dispatch; this is a programming error.
		return Result{Err: &UnknownEngineError{Engine: string(req.Engine)}}
	}
	return d.call(ctx, provider, req)
}

// DetectAll fans the request out to every provider concurrently and joins
// on exactly one result per provider, in arrival order. The join is a
// channel merge: each call delivers its result once, and the loop below
// cannot complete until all three have, so the combined response is never
// partial regardless of completion order.
func (d *Dispatcher) DetectAll(ctx context.Context, req *Request) []Result {
	ctx, span := observability.StartFanOutSpan(ctx, req.UploadID, len(d.order))
	defer span.End()

	resultCh := make(chan Result, len(d.order))

	for _, provider := range d.order {
		go func(p Provider) {
			resultCh <- d.call(ctx, p, req)
		}(provider)
	}

	results := make([]Result, 0, len(d.order))
	for range d.order {
		results = append(results, <-resultCh)
	}
	return results
}

// call invokes one provider under the per-call timeout and emits the
// completion event. A failed call carries its error in the result slot;
// Text stays empty so callers never read partial text.
func (d *Dispatcher) call(ctx context.Context, provider Provider, req *Request) Result {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	callCtx, span := observability.StartProviderSpan(callCtx, string(provider.Name()), req.UploadID)

	start := time.Now()
	text, err := provider.Detect(callCtx, req.Image)
	elapsed := time.Since(start)
	observability.EndSpan(span, err)

	d.metrics.RecordProviderCall(string(provider.Name()), elapsed, err)

	result := Result{Provider: provider.Name()}
	if err != nil {
		result.Err = err
		log.Warn().
			Err(err).
			Str("provider", string(provider.Name())).
			Str("upload_id", req.UploadID).
			Dur("elapsed", elapsed).
			Msg("Provider call failed")
	} else {
		result.Text = text
		log.Debug().
			Str("provider", string(provider.Name())).
			Str("upload_id", req.UploadID).
			Dur("elapsed", elapsed).
			Int("text_len", len(text)).
			Msg("Provider call completed")
	}

	if d.sink != nil {
		d.sink.Enqueue(Completion{
			UploadID: req.UploadID,
			Provider: provider.Name(),
			Text:     result.Text,
			Err:      result.Err,
			Image:    req.Image,
		})
	}

	return result
}
