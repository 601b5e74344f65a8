package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbits/internal/config"
	"finbits/internal/events"
	applog "finbits/internal/log"
	"finbits/internal/worker"
)

func TestInitReadCachesDisabledByDefault(t *testing.T) {
	t.Setenv("CACHE_TTL", "")
	cfg := config.Load()

	rc := InitReadCaches(applog.Discard(), cfg)
	assert.Nil(t, rc.Summaries)
	assert.Nil(t, rc.Catalog)
	rc.Stop()
}

func TestInitReadCachesEnabledWithTTL(t *testing.T) {
	rc := InitReadCaches(applog.Discard(), &config.Config{CacheTTL: time.Minute})
	defer rc.Stop()

	require.NotNil(t, rc.Summaries)
	require.NotNil(t, rc.Catalog)
	rc.Catalog.Set("active", nil)
	assert.Equal(t, 1, rc.Catalog.Size())
}

func TestInitLedgerHandlerWithoutSpreadsheet(t *testing.T) {
	h, err := InitLedgerHandler(context.Background(), applog.Discard(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, h)

	// With no ledger subscriber, spending events are acknowledged and dropped.
	w := worker.New(nil, h, applog.Discard())
	e, err := events.NewEnvelope(events.TypeSpendingRecorded, map[string]string{"budgetId": "b1"}, time.Now())
	require.NoError(t, err)
	assert.NoError(t, w.Handle(context.Background(), e))
}
