package metrics

import (
	"testing"
)

func TestCanPassNilTags(t *testing.T) {
	recorder := NewMetricsFake()

	t.Run("Empty tags and fields", func(_ *testing.T) {
		recorder.LogEvent("test", nil, nil)
		recorder.LogBanEvent("test", "both", nil)
		recorder.Close()
	})
}
