// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultSkipped  = "skipped"
)

var (
	SessionsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_sessions_committed_total",
			Help: "Total number of sessions committed by the operator",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_deliveries_total",
			Help: "Total number of deep link deliveries",
		},
		[]string{"result"}, // ok, not_found, error
	)

	ItemsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_items_sent_total",
			Help: "Total number of session items sent to requesters",
		},
		[]string{"kind", "result"},
	)

	DeletionsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_deletions_scheduled_total",
			Help: "Total number of delivered messages scheduled for deletion",
		},
	)

	Deletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_deletions_total",
			Help: "Total number of fired deletion jobs",
		},
		[]string{"result"}, // ok, error
	)

	DeletionsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vault_deletions_pending",
			Help: "Number of deletion jobs waiting to fire",
		},
	)

	BroadcastSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_broadcast_sends_total",
			Help: "Total number of broadcast sends per recipient",
		},
		[]string{"result"}, // ok, error, skipped
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_inbound_messages_total",
			Help: "Total number of private messages received from Feishu",
		},
		[]string{"msg_type"},
	)
)
