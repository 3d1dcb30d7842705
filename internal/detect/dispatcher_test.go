package detect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider completes after an optional delay with a fixed outcome
type stubProvider struct {
	name  ProviderName
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (s *stubProvider) Name() ProviderName {
	return s.name
}

func (s *stubProvider) Detect(ctx context.Context, image []byte) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingSink collects completion events
type recordingSink struct {
	mu     sync.Mutex
	events []Completion
}

func (r *recordingSink) Enqueue(event Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) all() []Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Completion(nil), r.events...)
}

func TestDispatcher_Detect_SingleProvider(t *testing.T) {
	amazon := &stubProvider{name: ProviderAmazon, text: "from amazon"}
	google := &stubProvider{name: ProviderGoogle, text: "from google"}
	microsoft := &stubProvider{name: ProviderMicrosoft, text: "from microsoft"}
	dispatcher := NewDispatcher(amazon, google, microsoft, nil, time.Second, nil)

	result := dispatcher.Detect(context.Background(), NewRequest([]byte("img"), "", EngineGoogle))

	require.NoError(t, result.Err)
	assert.Equal(t, ProviderGoogle, result.Provider)
	assert.Equal(t, "from google", result.Text)
	assert.Equal(t, 1, google.callCount())
	assert.Zero(t, amazon.callCount())
	assert.Zero(t, microsoft.callCount())
}

func TestDispatcher_Detect_ProviderError(t *testing.T) {
	failing := &stubProvider{name: ProviderAmazon, err: errors.New("vendor down")}
	dispatcher := NewDispatcher(
		failing,
		&stubProvider{name: ProviderGoogle},
		&stubProvider{name: ProviderMicrosoft},
		nil, time.Second, nil,
	)

	result := dispatcher.Detect(context.Background(), NewRequest([]byte("img"), "", EngineAmazon))

	require.Error(t, result.Err)
	assert.Empty(t, result.Text)
}

func TestDispatcher_DetectAll_CompletesInAnyOrder(t *testing.T) {
	// Reverse completion order: Microsoft first, Amazon last
	amazon := &stubProvider{name: ProviderAmazon, text: "amazon text", delay: 60 * time.Millisecond}
	google := &stubProvider{name: ProviderGoogle, text: "google text", delay: 30 * time.Millisecond}
	microsoft := &stubProvider{name: ProviderMicrosoft, text: "microsoft text"}
	dispatcher := NewDispatcher(amazon, google, microsoft, nil, time.Second, nil)

	results := dispatcher.DetectAll(context.Background(), NewRequest([]byte("img"), "", EngineAll))

	require.Len(t, results, 3)

	byProvider := make(map[ProviderName]Result)
	for _, result := range results {
		byProvider[result.Provider] = result
	}
	require.Len(t, byProvider, 3, "each provider contributes exactly one slot")
	assert.Equal(t, "amazon text", byProvider[ProviderAmazon].Text)
	assert.Equal(t, "google text", byProvider[ProviderGoogle].Text)
	assert.Equal(t, "microsoft text", byProvider[ProviderMicrosoft].Text)

	// Arrival order reflects completion order
	assert.Equal(t, ProviderMicrosoft, results[0].Provider)
	assert.Equal(t, ProviderAmazon, results[2].Provider)
}

func TestDispatcher_DetectAll_FailedSlotIsDistinctFromEmpty(t *testing.T) {
	amazon := &stubProvider{name: ProviderAmazon, err: errors.New("boom")}
	google := &stubProvider{name: ProviderGoogle, text: ""} // genuine empty detection
	microsoft := &stubProvider{name: ProviderMicrosoft, text: "ok"}
	dispatcher := NewDispatcher(amazon, google, microsoft, nil, time.Second, nil)

	results := dispatcher.DetectAll(context.Background(), NewRequest([]byte("img"), "", EngineAll))

	byProvider := make(map[ProviderName]Result)
	for _, result := range results {
		byProvider[result.Provider] = result
	}

	assert.Error(t, byProvider[ProviderAmazon].Err)
	assert.NoError(t, byProvider[ProviderGoogle].Err)
	assert.Empty(t, byProvider[ProviderGoogle].Text)
	assert.Equal(t, "ok", byProvider[ProviderMicrosoft].Text)
}

func TestDispatcher_DetectAll_HungProviderTimesOut(t *testing.T) {
	hung := &stubProvider{name: ProviderAmazon, text: "never", delay: time.Minute}
	google := &stubProvider{name: ProviderGoogle, text: "g"}
	microsoft := &stubProvider{name: ProviderMicrosoft, text: "m"}
	dispatcher := NewDispatcher(hung, google, microsoft, nil, 50*time.Millisecond, nil)

	start := time.Now()
	results := dispatcher.DetectAll(context.Background(), NewRequest([]byte("img"), "", EngineAll))
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	assert.Less(t, elapsed, 5*time.Second, "join must not wait for the hung provider")

	byProvider := make(map[ProviderName]Result)
	for _, result := range results {
		byProvider[result.Provider] = result
	}
	require.Error(t, byProvider[ProviderAmazon].Err)
	assert.ErrorIs(t, byProvider[ProviderAmazon].Err, context.DeadlineExceeded)
}

func TestDispatcher_EmitsOneCompletionPerCall(t *testing.T) {
	sink := &recordingSink{}
	amazon := &stubProvider{name: ProviderAmazon, text: "a"}
	google := &stubProvider{name: ProviderGoogle, err: errors.New("down")}
	microsoft := &stubProvider{name: ProviderMicrosoft, text: "m"}
	dispatcher := NewDispatcher(amazon, google, microsoft, sink, time.Second, nil)

	req := NewRequest([]byte("img"), "tag", EngineAll)
	dispatcher.DetectAll(context.Background(), req)

	events := sink.all()
	require.Len(t, events, 3)

	seen := make(map[ProviderName]Completion)
	for _, event := range events {
		assert.Equal(t, req.UploadID, event.UploadID)
		assert.Equal(t, []byte("img"), event.Image)
		seen[event.Provider] = event
	}
	require.Len(t, seen, 3)
	assert.NoError(t, seen[ProviderAmazon].Err)
	assert.Error(t, seen[ProviderGoogle].Err)
	assert.Empty(t, seen[ProviderGoogle].Text, "failed call must not carry partial text")
}

func TestDispatcher_Detect_EmitsCompletionOnSinglePath(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := NewDispatcher(
		&stubProvider{name: ProviderAmazon},
		&stubProvider{name: ProviderGoogle, text: "hello"},
		&stubProvider{name: ProviderMicrosoft},
		sink, time.Second, nil,
	)

	req := NewRequest([]byte("img"), "", EngineGoogle)
	dispatcher.Detect(context.Background(), req)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, ProviderGoogle, events[0].Provider)
	assert.Equal(t, "hello", events[0].Text)
}
