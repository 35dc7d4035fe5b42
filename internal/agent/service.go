package agent

import (
	"context"
	"log/slog"
	"time"
)

// Channel names used in the conversation log.
const (
	ChannelHTTP      = "chat_http"
	ChannelStream    = "chat_sse"
	ChannelWebSocket = "chat_ws"
	ChannelCLI       = "chat_cli"
)

// Service is the transport-facing entry point for chat turns. It records a
// transcript of every turn alongside the processor's own persistence.
type Service struct {
	processor Processor
	log       ConversationLogger
}

// NewService creates a chat service. A nil logger disables transcripts.
func NewService(processor Processor, log ConversationLogger) *Service {
	if log == nil {
		log = noopConversationLogger{}
	}
	return &Service{processor: processor, log: log}
}

// Chat runs one turn for userID arriving on channel.
func (s *Service) Chat(ctx context.Context, userID, channel, message string) (*TurnResult, error) {
	start := time.Now()
	res, err := s.processor.HandleTurn(ctx, userID, message)
	if err != nil {
		slog.Warn("Chat turn rejected", "user_id", userID, "channel", channel, "error", err)
		return nil, err
	}

	s.log.Log(ConversationLogEvent{
		Timestamp:  start.UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  res.SessionID,
		Channel:    channel,
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: message,
	})

	meta := map[string]any{
		"kind":        res.Kind.String(),
		"path":        string(res.Path),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if res.Tool != nil {
		meta["tool"] = res.Tool.Name
		meta["tool_status"] = string(res.Tool.Result.Status)
		meta["tool_message"] = res.Tool.Result.Message
	}
	s.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  res.SessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: res.Reply,
		Meta:       meta,
	})
	return res, nil
}

// Close flushes the conversation log.
func (s *Service) Close() {
	if err := s.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}
