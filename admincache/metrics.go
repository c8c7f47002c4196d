package admincache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var adminRefreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_admin_refreshes",
	Help: "Number of admin roster reloads from the platform API",
}, []string{"reason"})

var adminRefreshThrottled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_admin_refreshes_throttled",
	Help: "Number of manual admin reloads refused by the cooldown",
})
