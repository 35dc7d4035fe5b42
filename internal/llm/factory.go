package llm

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/aidiary/internal/config"
	"github.com/ashureev/aidiary/internal/metrics"
)

// New builds the configured generator wrapped in a Bounded decorator. The returned
// closer releases backend connections.
func New(cfg config.GeneratorConfig, m *metrics.Metrics, logger *slog.Logger) (*Bounded, func(), error) {
	var (
		gen     Generator
		closeFn = func() {}
	)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		gen = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.MaxTokens)
	case config.ProviderAnthropic:
		gen = NewAnthropic(cfg.AnthropicAPIKey, "", cfg.Model, cfg.MaxTokens)
	case config.ProviderGRPC:
		grpcCfg := DefaultGRPCConfig(cfg.GRPCAddr)
		grpcCfg.MaxTokens = cfg.MaxTokens
		client, err := NewGRPC(grpcCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		gen = client
		closeFn = client.Close
	default:
		return nil, nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}

	logger.Info("Text generator configured", "provider", gen.Name(), "model", cfg.Model, "timeout", cfg.Timeout)
	return NewBounded(gen, cfg.Timeout, m), closeFn, nil
}
