// Package detect routes an uploaded image to one or more remote OCR
// providers and normalizes each vendor response into plain text.
package detect

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Engine selects which provider(s) a request is dispatched to.
type Engine string

const (
	EngineAmazon    Engine = "amazon"
	EngineGoogle    Engine = "google"
	EngineMicrosoft Engine = "microsoft"
	EngineAll       Engine = "all"
)

// ProviderName identifies a provider in results and archive keys.
type ProviderName string

const (
	ProviderAmazon    ProviderName = "Amazon"
	ProviderGoogle    ProviderName = "Google"
	ProviderMicrosoft ProviderName = "Microsoft"
)

// UnknownEngineError is returned when the requested engine is not in the
// fixed set. It is raised before any provider call is attempted.
type UnknownEngineError struct {
	Engine string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("requested engine %q not found", e.Engine)
}

// ParseEngine validates an engine selector. It is strict: the caller decides
// what an empty selector falls back to (the configured default engine).
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineAmazon, EngineGoogle, EngineMicrosoft, EngineAll:
		return Engine(s), nil
	default:
		return "", &UnknownEngineError{Engine: s}
	}
}

// Request is one validated detection request. It lives for the duration of
// a single HTTP call and is never persisted.
type Request struct {
	Image    []byte
	Source   string
	Engine   Engine
	UploadID string
}

// NewRequest builds a Request with a time-keyed upload ID. The ID doubles as
// the archive key, so uniqueness only needs to hold at millisecond grain.
func NewRequest(image []byte, source string, engine Engine) *Request {
	return &Request{
		Image:    image,
		Source:   source,
		Engine:   engine,
		UploadID: string(engine) + "-" + source + strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
}

// Result is the normalized outcome of one provider call. Exactly one of
// Text and Err is meaningful: a provider that detected nothing reports an
// empty Text with a nil Err, which is not an error.
type Result struct {
	Provider ProviderName
	Text     string
	Err      error
}

// Provider performs OCR against one remote vendor and normalizes the
// response into trimmed plain text.
type Provider interface {
	Name() ProviderName
	Detect(ctx context.Context, image []byte) (string, error)
}

// Completion describes one finished provider call, success or failure. The
// dispatcher emits exactly one per call for archival and notification.
type Completion struct {
	UploadID string
	Provider ProviderName
	Text     string
	Err      error
	Image    []byte
}

// CompletionSink receives completion events. Implementations must not block:
// the response path fires these and moves on.
type CompletionSink interface {
	Enqueue(Completion)
}
