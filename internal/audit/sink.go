package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"warden/internal/platform/kafka/producer"
)

// Sink persists or forwards events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, e Event) error {
	args := []any{
		"action", string(e.Action),
		"user_id", e.UserID,
		"request_id", e.RequestID,
	}
	if e.ActorID != "" {
		args = append(args, "actor_id", e.ActorID)
	}
	if e.Subject != "" {
		args = append(args, "subject", e.Subject)
	}
	if e.Reason != "" {
		args = append(args, "reason", e.Reason)
	}
	if e.ClientIP != "" {
		args = append(args, "client_ip", e.ClientIP)
	}
	if e.Device != "" {
		args = append(args, "device", e.Device)
	}
	for k, v := range e.Attrs {
		args = append(args, k, v)
	}
	s.logger.InfoContext(ctx, "audit", args...)
	return nil
}

// MessagePublisher is satisfied by *producer.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg producer.Message) error
}

// KafkaSink publishes events as JSON keyed by user id, so one user's events
// land on one partition in order.
type KafkaSink struct {
	pub MessagePublisher
}

func NewKafkaSink(pub MessagePublisher) *KafkaSink {
	return &KafkaSink{pub: pub}
}

func (s *KafkaSink) Write(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.pub.Publish(ctx, producer.Message{
		Key:     []byte(e.UserID),
		Value:   payload,
		Headers: map[string]string{"action": string(e.Action)},
	})
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Actions lists the recorded actions in order.
func (s *MemorySink) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}
