package telemetry

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportchain/pkg/logger"
)

func TestTrace_RecordsHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := New(reg, 0)
	require.NoError(t, err)

	tr := tel.Track("read_chain")
	tr.Mark("sort")
	tr.Mark("encode")
	tr.Finish()
	tr.Finish()

	require.Len(t, tr.Steps, 2)
	assert.Equal(t, "sort", tr.Steps[0].Name)
	assert.Equal(t, 1, testutil.CollectAndCount(tel.operations))
	assert.Equal(t, 2, testutil.CollectAndCount(tel.steps))

	_, err = New(reg, 0)
	assert.Error(t, err, "registering twice must fail")
}

func TestTrace_LogsSlowOperations(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, "debug")
	t.Cleanup(func() { logger.Log = nil })

	tel, err := New(nil, time.Nanosecond)
	require.NoError(t, err)
	tr := tel.Track("gap_scan")
	time.Sleep(time.Millisecond)
	tr.Finish()

	assert.Contains(t, buf.String(), "slow_operation")
	assert.Contains(t, buf.String(), "operation=gap_scan")
}

func TestGlobalTrack(t *testing.T) {
	Close()
	tr := Track("before_init")
	tr.Finish()
	assert.GreaterOrEqual(t, tr.TotalMS, 0.0)

	require.NoError(t, Init(prometheus.NewRegistry(), time.Hour))
	t.Cleanup(Close)
	tr = Track("after_init")
	assert.NotNil(t, tr.tel)
	tr.Finish()
	assert.Nil(t, tr.tel)
}
