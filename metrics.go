package authcore

import "sync/atomic"

// MetricID names one counter. IDs are dense and stable; the OTel
// exporter maps them to instrument names.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricTwoFactorRequired
	MetricTwoFactorSuccess
	MetricTwoFactorFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricLogout
	MetricLogoutAll
	MetricPasswordChanged
	MetricPasswordChangeFailed

	metricCount
)

var metricNames = [...]string{
	MetricRegisterSuccess:      "register_success",
	MetricRegisterFailure:      "register_failure",
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricTwoFactorRequired:    "two_factor_required",
	MetricTwoFactorSuccess:     "two_factor_success",
	MetricTwoFactorFailure:     "two_factor_failure",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricLogout:               "logout",
	MetricLogoutAll:            "logout_all",
	MetricPasswordChanged:      "password_changed",
	MetricPasswordChangeFailed: "password_change_failed",
}

// Name returns the stable exporter name for the metric.
func (id MetricID) Name() string {
	if int(id) < len(metricNames) {
		return metricNames[id]
	}
	return "unknown"
}

// MetricIDs lists every defined counter, for exporters.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// Metrics is a fixed set of lock-free counters. Increments on hot
// paths are a single atomic add.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricCount),
	}
	if m == nil {
		return snap
	}
	for i := range m.counters {
		snap.Counters[MetricID(i)] = m.counters[i].Load()
	}
	return snap
}
