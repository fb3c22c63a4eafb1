package gapscan

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"reportchain/pkg/config"
	"reportchain/pkg/logger"
	"reportchain/pkg/models"
	"reportchain/pkg/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func run(from, to int) []models.ReportAction {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var out []models.ReportAction
	for i := from; i <= to; i++ {
		prev := ""
		if i > 1 {
			prev = strconv.Itoa(i - 1)
		}
		out = append(out, models.ReportAction{
			ReportActionID:         strconv.Itoa(i),
			PreviousReportActionID: prev,
			Created:                models.FormatCreated(base.Add(time.Duration(i) * time.Minute)),
			ActionName:             models.ActionAddComment,
		})
	}
	return out
}

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	ctx := context.Background()
	var gapped []models.ReportAction
	gapped = append(gapped, run(1, 7)...)
	gapped = append(gapped, run(9, 12)...)
	gapped = append(gapped, run(14, 17)...)
	require.NoError(t, s.PutActions(ctx, "gapped", gapped...))
	require.NoError(t, s.PutActions(ctx, "whole", run(1, 5)...))
	return s
}

func TestScanOnce(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, "info")
	t.Cleanup(func() { logger.Log = nil })

	reg := prometheus.NewRegistry()
	sc, err := New(seeded(t), config.GapScanConfig{Cron: "* * * * *"}, reg)
	require.NoError(t, err)

	reports, err := sc.ScanOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, Report{ReportID: "gapped", Actions: 15, Segments: 3, Missing: []string{"13", "8"}}, reports[0])
	assert.True(t, reports[0].HasGap())
	assert.Equal(t, "whole", reports[1].ReportID)
	assert.False(t, reports[1].HasGap())

	assert.Equal(t, 2.0, testutil.ToFloat64(sc.gaps))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.scans))
	assert.Contains(t, buf.String(), "gap_detected")
	assert.Contains(t, buf.String(), "report_id=gapped")
	assert.NotContains(t, buf.String(), "report_id=whole")
}

func TestScanOnce_CancelledContext(t *testing.T) {
	sc, err := New(seeded(t), config.GapScanConfig{Cron: "* * * * *"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sc.ScanOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunJobSkipsOverlap(t *testing.T) {
	sc, err := New(seeded(t), config.GapScanConfig{Cron: "* * * * *"}, nil)
	require.NoError(t, err)

	sc.running = true
	reports, err := sc.runJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, reports)
	assert.Zero(t, testutil.ToFloat64(sc.scans))
}

func TestStartStops(t *testing.T) {
	sc, err := New(store.NewMemory(), config.GapScanConfig{Cron: "* * * * *"}, nil)
	require.NoError(t, err)

	stop := sc.Start(context.Background())
	stop()
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(store.NewMemory(), config.GapScanConfig{}, reg)
	require.NoError(t, err)
	_, err = New(store.NewMemory(), config.GapScanConfig{}, reg)
	assert.Error(t, err)
}
