// Package metrics defines Prometheus counters for device-flow sign-ins, token
// refreshes, and session pruning.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the deviceauth collectors. A nil *Metrics records nothing.
type Metrics struct {
	DeviceFlows    *prometheus.CounterVec
	PollAttempts   *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
	SessionsPruned prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeviceFlows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deviceauth_device_flow_total",
			Help: "Device authorization flows by terminal state",
		}, []string{"outcome"}),
		PollAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deviceauth_poll_attempts_total",
			Help: "Token endpoint polling attempts by result",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deviceauth_refresh_total",
			Help: "Refresh token exchanges by result",
		}, []string{"result"}),
		SessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deviceauth_sessions_pruned_total",
			Help: "Stored sessions dropped because they expired and could not be refreshed",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DeviceFlows, m.PollAttempts, m.Refreshes, m.SessionsPruned)
	}
	return m
}

// DeviceFlowFinished counts a flow reaching a terminal state (success, expired, denied, error).
func (m *Metrics) DeviceFlowFinished(outcome string) {
	if m == nil {
		return
	}
	m.DeviceFlows.WithLabelValues(outcome).Inc()
}

// PollAttempt counts one token endpoint attempt (success, pending, slow_down, terminal).
func (m *Metrics) PollAttempt(result string) {
	if m == nil {
		return
	}
	m.PollAttempts.WithLabelValues(result).Inc()
}

// Refresh counts a refresh exchange (refreshed, rejected, unavailable).
func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

// Pruned counts n sessions dropped during a read.
func (m *Metrics) Pruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsPruned.Add(float64(n))
}
