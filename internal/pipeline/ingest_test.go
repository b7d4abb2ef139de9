package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-feature-lab/internal/source"
	"market-feature-lab/internal/storage/memory"
)

func ingestOptions(src *source.Static) IngestOptions {
	return IngestOptions{
		Instruments:    []string{"AAA"},
		Indicators:     []Indicator{{Alias: "MACRO", Code: "MCR"}},
		Prices:         src,
		Macro:          src,
		PriceStore:     memory.NewPriceStore(),
		IndicatorStore: memory.NewIndicatorStore(),
		Start:          testStart,
		End:            testStart.AddDate(0, 0, 99),
	}
}

func TestIngest_Incremental(t *testing.T) {
	ctx := context.Background()
	opts := ingestOptions(testSource())

	res, err := Ingest(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Stored["AAA"])
	assert.Equal(t, 4, res.Stored["MCR"]) // days 0, 30, 60, 90

	// Same window again: nothing new.
	res, err = Ingest(ctx, opts)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAA", "MCR"}, res.UpToDate)
	assert.Empty(t, res.Stored)

	// Extend the window: only the tail is fetched and appended.
	opts.End = testStart.AddDate(0, 0, 149)
	res, err = Ingest(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Stored["AAA"])
	assert.Equal(t, 1, res.Stored["MCR"]) // day 120

	prices, err := opts.PriceStore.GetByRange(ctx, "AAA", testStart, opts.End)
	require.NoError(t, err)
	assert.Len(t, prices, 150)

	latest, err := opts.IndicatorStore.LatestDate(ctx, "MCR")
	require.NoError(t, err)
	assert.Equal(t, testStart.AddDate(0, 0, 120), latest)
}

func TestIngest_SkipsUnavailable(t *testing.T) {
	opts := ingestOptions(testSource())
	opts.Instruments = append(opts.Instruments, "MISSING")

	res, err := Ingest(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"MISSING"}, res.Skipped)
	assert.Equal(t, 100, res.Stored["AAA"])
}

func TestIngest_RequiresStores(t *testing.T) {
	opts := ingestOptions(testSource())
	opts.PriceStore = nil

	_, err := Ingest(context.Background(), opts)
	assert.Error(t, err)
}
