package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteWritePusherSendsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakehouse_test_total",
		Help: "test counter",
	}, []string{"job"})
	registry.MustRegister(counter)
	counter.WithLabelValues("reconcile_prices").Add(4)

	var got prompb.WriteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pusher := NewRemoteWritePusher(srv.URL, "secret")
	require.NoError(t, pusher.Push(context.Background(), registry))

	require.Len(t, got.Timeseries, 1)
	ts := got.Timeseries[0]
	assert.Equal(t, float64(4), ts.Samples[0].Value)
	assert.Equal(t, "__name__", ts.Labels[0].Name)
	assert.Equal(t, "bakehouse_test_total", ts.Labels[0].Value)
}

func TestRemoteWritePusherReportsHTTPErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bakehouse_test_gauge", Help: "g"})
	registry.MustRegister(g)
	g.Set(1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), registry)
	assert.Error(t, err)
}

func TestNewPusherSelection(t *testing.T) {
	log := zap.NewNop()
	assert.Nil(t, NewPusher(PushConfig{}, log))
	assert.Nil(t, NewPusher(PushConfig{Exporter: ExporterRemoteWrite}, log))
	assert.Nil(t, NewPusher(PushConfig{Exporter: "statsd", Endpoint: "x"}, log))
	assert.IsType(t, &RemoteWritePusher{}, NewPusher(PushConfig{Exporter: ExporterRemoteWrite, Endpoint: "http://collector/api/v1/write"}, log))
	assert.IsType(t, &PushgatewayPusher{}, NewPusher(PushConfig{Exporter: ExporterPushgateway, Endpoint: "http://pushgateway:9091"}, log))
}
