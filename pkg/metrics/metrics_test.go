package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg))

	c.FrameSent(1000, 100, 2*time.Millisecond)
	c.FrameSent(1000, 50, time.Millisecond)
	c.FrameReceived()
	c.SetState(2)
	c.SessionError("framing")
	c.SessionError("framing")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesSent))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.bytesSent))
	assert.Equal(t, 2000.0, testutil.ToFloat64(c.rawBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionState))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionErrors.WithLabelValues("framing")))

	count, err := testutil.GatherAndCount(reg, "framestream_compression_ratio")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg), WithNamespace("cam"), WithConstLabels(prometheus.Labels{"device": "0"}))
	c.FrameSent(10, 5, 0)

	count, err := testutil.GatherAndCount(reg, "cam_frames_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilCollector(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.FrameSent(1, 1, time.Second)
		c.FrameReceived()
		c.SetState(3)
		c.SessionError("sink")
	})
}
