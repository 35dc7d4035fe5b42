package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// GeneratorServiceName is the gRPC service a generator sidecar must expose.
const GeneratorServiceName = "aidiary.generator.v1.Generator"

const generateMethod = "/" + GeneratorServiceName + "/Generate"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNotServing               = errors.New("generator sidecar not serving")
)

// GRPCGenerator calls a model sidecar over gRPC. Requests and responses are
// google.protobuf.Struct values, so no generated stubs are needed:
//
//	request:  {system: string, messages: [{role, content}], max_tokens: number}
//	response: {text: string}
type GRPCGenerator struct {
	conn      *grpc.ClientConn
	health    healthpb.HealthClient
	addr      string
	maxTokens int
	logger    *slog.Logger
}

// GRPCConfig holds configuration for the sidecar client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	MaxTokens        int
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
		MaxTokens:        1024,
	}
}

// NewGRPC dials the sidecar and waits until the connection is ready.
func NewGRPC(cfg GRPCConfig, logger *slog.Logger) (*GRPCGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to generator at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so we fail fast on bad endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("generator at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to generator sidecar", "address", cfg.Address)

	return &GRPCGenerator{
		conn:      conn,
		health:    healthpb.NewHealthClient(conn),
		addr:      cfg.Address,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Name implements Generator.
func (g *GRPCGenerator) Name() string { return "grpc" }

// Generate implements Generator.
func (g *GRPCGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	in, err := structpb.NewStruct(map[string]any{
		"system":     req.System,
		"messages":   messages,
		"max_tokens": maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("grpc: encode request: %w", err)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, generateMethod, in, out); err != nil {
		return "", fmt.Errorf("grpc: generate: %w", err)
	}

	text, ok := out.GetFields()["text"]
	if !ok {
		return "", errors.New("grpc: response has no text field")
	}
	return text.GetStringValue(), nil
}

// Ping checks the sidecar through the standard gRPC health service.
func (g *GRPCGenerator) Ping(ctx context.Context) error {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: GeneratorServiceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (g *GRPCGenerator) Close() {
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			g.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
