package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-dcboot/bootloader"
	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/swap"
)

func TestObserve(t *testing.T) {
	t.Parallel()

	c, err := NewCollector(nil)
	require.NoError(t, err)

	for _, e := range []bootloader.Event{
		{Type: bootloader.EventBoot, State: bootrecord.StateBoot},
		{Type: bootloader.EventUpdateAccepted, Version: 2},
		{Type: bootloader.EventSwapProgress, Swap: swap.Progress{Direction: swap.Forward, Block: 1}},
		{Type: bootloader.EventSwapProgress, Swap: swap.Progress{Direction: swap.Forward, Block: 2}},
		{Type: bootloader.EventJump, Version: 2},
		{Type: bootloader.EventBoot, State: bootrecord.StateSwappedUnconfirmed},
		{Type: bootloader.EventWatchdogReset, Attempts: 1},
		{Type: bootloader.EventSwapProgress, Swap: swap.Progress{Direction: swap.Revert, Block: 1}},
		{Type: bootloader.EventRevertComplete, Version: 1},
		{Type: bootloader.EventJump, Version: 1},
		{Type: bootloader.EventRetry},
	} {
		c.Observe(e)
	}

	assert.InDelta(t, 1, testutil.ToFloat64(c.boots.WithLabelValues("Boot")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.boots.WithLabelValues("SwappedUnconfirmed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.decisions.WithLabelValues("jump")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.decisions.WithLabelValues("retry")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.updates.WithLabelValues("accepted")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.swapBlocks.WithLabelValues("forward")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.swapBlocks.WithLabelValues("revert")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.watchdogResets), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.reverts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.version), 0)
}

func TestNewCollectorTwiceOnSameRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	c, err := NewCollector(nil)
	require.NoError(t, err)
	c.Observe(bootloader.Event{Type: bootloader.EventJump, Version: 7})

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dcboot_firmware_version 7")
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	c, err := NewCollector(nil)
	require.NoError(t, err)
	c.Observe(bootloader.Event{Type: bootloader.EventRevertComplete})

	path := filepath.Join(t.TempDir(), "dcboot.prom")
	require.NoError(t, c.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dcboot_reverts_total 1")
}
