package llm

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

type generatorService interface {
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type echoSidecar struct{}

func (echoSidecar) Generate(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	msgs := in.GetFields()["messages"].GetListValue().GetValues()
	last := ""
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].GetStructValue().GetFields()["content"].GetStringValue()
	}
	return structpb.NewStruct(map[string]any{"text": "echo: " + last})
}

var generatorServiceDesc = grpc.ServiceDesc{
	ServiceName: GeneratorServiceName,
	HandlerType: (*generatorService)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Generate",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(generatorService).Generate(ctx, in)
		},
	}},
}

func startSidecar(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	srv.RegisterService(&generatorServiceDesc, echoSidecar{})
	hs := health.NewServer()
	hs.SetServingStatus(GeneratorServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestGRPCGenerate(t *testing.T) {
	t.Parallel()

	addr := startSidecar(t)
	g, err := NewGRPC(DefaultGRPCConfig(addr), nil)
	if err != nil {
		t.Fatalf("NewGRPC failed: %v", err)
	}
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := g.Generate(ctx, Request{
		System:   "sys",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "echo: ping" {
		t.Fatalf("unexpected text %q", got)
	}
	if err := g.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestNewGRPCFailsFastOnBadAddress(t *testing.T) {
	t.Parallel()

	cfg := DefaultGRPCConfig("127.0.0.1:1")
	cfg.ConnectTimeout = 200 * time.Millisecond
	if _, err := NewGRPC(cfg, nil); err == nil {
		t.Fatal("expected readiness failure")
	}
}
