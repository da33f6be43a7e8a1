package metrics

// metricsFake is a no-op implementation of Metrics
type metricsFake struct{}

// Ensure metricsFake implements Metrics
var _ Metrics = (*metricsFake)(nil)

// NewMetricsFake creates a no-op recorder, used when metrics are disabled
// and in tests
func NewMetricsFake() Metrics {
	return &metricsFake{}
}

// LogEvent is a no-op method for metricsFake
func (metrics *metricsFake) LogEvent(_ string, _ map[string]string, _ map[string]interface{}) {
	// No operation, this is a fake recorder
}

// LogBanEvent is a no-op method for metricsFake
func (metrics *metricsFake) LogBanEvent(_ string, _ string, _ map[string]interface{}) {
	// No operation, this is a fake recorder
}

// Close is a no-op method for metricsFake
func (metrics *metricsFake) Close() {
	// No operation, this is a fake recorder
}
