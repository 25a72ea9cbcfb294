// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC) implements this interface and serves the same
// Service. The service doesn't care how requests arrive; it only works with
// the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/message"
)

// Service is what transports expose. *dispatch.Dispatcher implements it.
type Service interface {
	// Handle synthesizes one request.
	Handle(ctx context.Context, req *message.SynthesisRequest) (*message.SynthesisResponse, error)

	// Voices and Voice report speaker tier availability.
	Voices() []message.VoiceInfo
	Voice(id string) (message.VoiceInfo, error)

	// Visemes returns the viseme vocabulary.
	Visemes() message.VisemeList
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and serves them with svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Status names the outcome of a request for metrics.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errs.IsKind(err, errs.KindInput):
		return "rejected"
	default:
		return "error"
	}
}
