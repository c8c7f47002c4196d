package warden

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_events_processed",
	Help: "Number of message events processed",
}, []string{"outcome"})

var blacklistHitCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_blacklist_hits",
	Help: "Number of blacklist trigger matches, by configured action",
}, []string{"action"})

var warnIssuedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_warns_issued",
	Help: "Number of warnings recorded",
})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_escalations",
	Help: "Number of warn-limit crossings, by terminal action",
}, []string{"mode"})

var actionFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_action_failures",
	Help: "Number of account actions the platform refused or failed",
}, []string{"action"})
