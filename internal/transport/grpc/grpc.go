// Package grpc implements the gRPC transport for avatarvoice.
//
// The service avatarvoice.v1.Synthesizer carries the same request and
// response shapes as the HTTP API, encoded as JSON via the "json" codec, so
// no generated stubs are needed. Clients select it with
// grpc.CallContentSubtype("json"). The standard gRPC health service is
// registered alongside.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/message"
	"github.com/nadzzz/avatarvoice/internal/metrics"
	"github.com/nadzzz/avatarvoice/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "avatarvoice.v1.Synthesizer"

// Full method names.
const (
	MethodSynthesize = "/" + ServiceName + "/Synthesize"
	MethodListVoices = "/" + ServiceName + "/ListVoices"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages as JSON. It is selected by the "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// ListVoicesRequest is empty.
type ListVoicesRequest struct{}

// ListVoicesResponse wraps the voice reports.
type ListVoicesResponse struct {
	Voices []message.VoiceInfo `json:"voices"`
}

// synthesizerServer is the handler type checked by grpc.RegisterService.
type synthesizerServer interface {
	Synthesize(context.Context, *message.SynthesisRequest) (*message.SynthesisResponse, error)
	ListVoices(context.Context, *ListVoicesRequest) (*ListVoicesResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*synthesizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Synthesize", Handler: synthesizeHandler},
		{MethodName: "ListVoices", Handler: listVoicesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "avatarvoice/v1/synthesizer",
}

func synthesizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.SynthesisRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(synthesizerServer).Synthesize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSynthesize}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(synthesizerServer).Synthesize(ctx, req.(*message.SynthesisRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listVoicesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListVoicesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(synthesizerServer).ListVoices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListVoices}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(synthesizerServer).ListVoices(ctx, req.(*ListVoicesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// server adapts a transport.Service to synthesizerServer.
type server struct {
	svc transport.Service
}

func (s *server) Synthesize(ctx context.Context, req *message.SynthesisRequest) (*message.SynthesisResponse, error) {
	start := time.Now()
	resp, err := s.svc.Handle(ctx, req)
	metrics.RecordSynthesis("grpc", transport.Status(err), time.Since(start))
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *server) ListVoices(context.Context, *ListVoicesRequest) (*ListVoicesResponse, error) {
	return &ListVoicesResponse{Voices: s.svc.Voices()}, nil
}

// toStatus maps pipeline errors to gRPC status codes.
func toStatus(err error) error {
	var typed *errs.Error
	if errors.As(err, &typed) && typed.Kind == errs.KindInput {
		msg := typed.Message
		if len(typed.Allowed) > 0 {
			msg = fmt.Sprintf("%s (allowed: %s)", msg, strings.Join(typed.Allowed, ", "))
		}
		if typed.Code == errs.CodeTooLarge {
			return status.Error(codes.ResourceExhausted, msg)
		}
		return status.Error(codes.InvalidArgument, msg)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	slog.Error("grpc synthesize failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return t.Serve(ctx, lis, svc)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, svc transport.Service) error {
	t.server = grpc.NewServer()
	t.server.RegisterService(&serviceDesc, &server{svc: svc})

	t.health = health.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	slog.Info("grpc transport listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// MaxResponseBytes is the receive limit the Client applies to responses.
// The longest request the daemon accepts by default (2000 characters) served
// by the tone tier is about 30 MB of base64 audio, well past gRPC's 4 MB default.
const MaxResponseBytes = 64 << 20

// Client calls the Synthesizer service over an existing connection.
type Client struct {
	conn grpc.ClientConnInterface
	opts []grpc.CallOption
}

// NewClient wraps conn. Responses up to MaxResponseBytes are accepted.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{
		conn: conn,
		opts: []grpc.CallOption{
			grpc.CallContentSubtype("json"),
			grpc.MaxCallRecvMsgSize(MaxResponseBytes),
		},
	}
}

// Synthesize calls Synthesizer/Synthesize.
func (c *Client) Synthesize(ctx context.Context, req *message.SynthesisRequest) (*message.SynthesisResponse, error) {
	out := new(message.SynthesisResponse)
	if err := c.conn.Invoke(ctx, MethodSynthesize, req, out, c.opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListVoices calls Synthesizer/ListVoices.
func (c *Client) ListVoices(ctx context.Context) ([]message.VoiceInfo, error) {
	out := new(ListVoicesResponse)
	if err := c.conn.Invoke(ctx, MethodListVoices, &ListVoicesRequest{}, out, c.opts...); err != nil {
		return nil, err
	}
	return out.Voices, nil
}
