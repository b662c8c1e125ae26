//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/audit"
	"warden/internal/platform/kafka/producer"
	"warden/pkg/testutil/containers"
)

func TestKafkaSinkDeliversEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	kc := containers.GetManager().GetKafka(t)

	const topic = "warden.audit.sink"
	require.NoError(t, kc.EnsureTopic(ctx, topic))

	prod, err := producer.New(producer.Config{Brokers: kc.Brokers, Topic: topic, ClientID: "warden-sink-test"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prod.Close(context.Background()) })

	pub := audit.NewPublisher(audit.NewKafkaSink(prod))
	pub.Emit(ctx, audit.Event{
		Action:  audit.ActionUserDeactivated,
		UserID:  "3f1c9a8e-0000-4000-8000-000000000001",
		ActorID: "admin-1",
		Reason:  "admin_request",
	})
	pub.Close()

	record := containers.FindRecord(ctx, kc.Reader(t, topic), 15*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "3f1c9a8e-0000-4000-8000-000000000001"
	})
	require.NotNil(t, record, "audit event never reached the topic")

	var got audit.Event
	require.NoError(t, json.Unmarshal(record.Value, &got))
	assert.Equal(t, audit.ActionUserDeactivated, got.Action)
	assert.Equal(t, "admin-1", got.ActorID)
	assert.False(t, got.Timestamp.IsZero())

	var action string
	for _, h := range record.Headers {
		if h.Key == "action" {
			action = string(h.Value)
		}
	}
	assert.Equal(t, "user_deactivated", action)
}
