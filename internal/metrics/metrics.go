// Package metrics provides Prometheus instrumentation for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesIngested counts records accepted into the message store,
	// labeled live or history.
	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacrm_messages_ingested_total",
			Help: "Message records ingested into the store",
		},
		[]string{"source"},
	)

	// MappingsRegistered counts new LID/phone mappings by evidence source.
	MappingsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacrm_identity_mappings_total",
			Help: "LID to phone mappings registered",
		},
		[]string{"source"},
	)

	// MigrationsPerformed counts conversation migrations.
	MigrationsPerformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wacrm_conversation_migrations_total",
			Help: "Conversation histories migrated from LID to phone keys",
		},
	)

	// MessagesMigrated counts individual records moved by migrations.
	MessagesMigrated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wacrm_messages_migrated_total",
			Help: "Message records moved between conversation keys",
		},
	)

	// AutoReplies counts auto-reply policy outcomes.
	AutoReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacrm_autoreplies_total",
			Help: "Auto-reply decisions by outcome",
		},
		[]string{"outcome"},
	)

	// SnapshotFlushes counts snapshot flush attempts by result.
	SnapshotFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacrm_snapshot_flushes_total",
			Help: "Snapshot flush attempts",
		},
		[]string{"name", "result"},
	)

	// RequestsTotal counts HTTP API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wacrm_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)
)
