package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Metrics defines the contract for recording moderation events
type Metrics interface {
	LogEvent(eventName string, tags map[string]string, fields map[string]interface{})
	LogBanEvent(eventName string, banType string, fields map[string]interface{})
	Close()
}

type metricsImpl struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	org         string
	bucket      string
	defaultTags map[string]string // Constant tags, like bot ID
}

// Ensure metricsImpl implements Metrics
var _ Metrics = (*metricsImpl)(nil)

// NewMetricsImpl initializes the recorder with constant tags like bot ID
func NewMetricsImpl(url string, token string, org string, bucket string, defaultTags map[string]string) Metrics {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)
	return &metricsImpl{
		client:      client,
		writeAPI:    writeAPI,
		org:         org,
		bucket:      bucket,
		defaultTags: defaultTags,
	}
}

// Universal method to log an event with customizable tags and fields
func (m *metricsImpl) LogEvent(eventName string, tags map[string]string, fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}

	point := influxdb2.NewPointWithMeasurement("bot_event").
		AddTag("event", eventName).
		SetTime(time.Now())

	// Add constant default tags
	for key, value := range m.defaultTags {
		point.AddTag(key, value)
	}

	// Add custom tags
	for key, value := range tags {
		point.AddTag(key, value)
	}

	// Add custom fields
	for key, value := range fields {
		point.AddField(key, value)
	}

	m.writeAPI.WritePoint(point)
}

// Specific method for logging ban-related events
func (m *metricsImpl) LogBanEvent(eventName string, banType string, fields map[string]interface{}) {
	if banType == "" {
		return
	}

	tags := map[string]string{
		"ban_type": banType,
	}

	m.LogEvent(eventName, tags, fields)
}

// Close flushes the write API and closes the client
func (m *metricsImpl) Close() {
	m.writeAPI.Flush()
	m.client.Close()
}
