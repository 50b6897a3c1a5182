package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveCapture("sms", 20*time.Millisecond, false)
	r.ObserveCapture("sms", 30*time.Millisecond, true)
	r.ObserveAnalyzer("generative", "timeout", time.Second)
	r.ObserveOCR("low_confidence", time.Second)
	r.ObserveConversion("event", "ok")
	r.ObserveConversion("event", "conflict")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.captures.WithLabelValues("sms", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.captures.WithLabelValues("sms", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analyzers.WithLabelValues("generative", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ocr.WithLabelValues("low_confidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conversions.WithLabelValues("event", "conflict")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveConversion("task", "ok")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `family_capture_conversions_total{outcome="ok",type="task"} 1`), string(body))
}
