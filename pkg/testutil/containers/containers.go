//go:build integration

// Package containers starts Postgres and Kafka with testcontainers-go for
// integration suites. Each container is started on first use and reused by
// every suite in the test binary.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	pgOnce    sync.Once
	pg        *PostgresContainer
	kafkaOnce sync.Once
	kafka     *KafkaContainer
}

var shared = &Manager{}

func GetManager() *Manager { return shared }

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() { m.pg = NewPostgresContainer(t) })
	if m.pg == nil {
		t.Fatal("postgres container unavailable")
	}
	return m.pg
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	m.kafkaOnce.Do(func() { m.kafka = NewKafkaContainer(t) })
	if m.kafka == nil {
		t.Fatal("kafka container unavailable")
	}
	return m.kafka
}
