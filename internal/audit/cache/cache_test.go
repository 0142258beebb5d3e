package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitescan/engine/pkg/types"
)

func sampleReport(url string) *types.Report {
	score := 87
	return &types.Report{
		OK:            true,
		URL:           url,
		NormalizedURL: url,
		FinalURL:      url,
		FetchedStatus: 200,
		TimingMs:      312,
		Title:         "Sample",
		Score:         &score,
		Checks: []types.Check{
			{ID: types.CheckHTTP, Label: "HTTP status", Status: types.StatusPass},
		},
	}
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	_, _, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	report := sampleReport("https://example.com/")
	m.Set(ctx, "k", report)

	got, age, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, report, got)
	assert.GreaterOrEqual(t, age, time.Duration(0))
	assert.Less(t, age, time.Second)
}

func TestMemoryExpiryEvictsOnRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10 * time.Millisecond)

	m.Set(ctx, "k", sampleReport("https://example.com/"))
	time.Sleep(20 * time.Millisecond)

	_, _, ok := m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	m.Set(ctx, "k", sampleReport("https://old.example.com/"))
	m.Set(ctx, "k", sampleReport("https://new.example.com/"))

	got, _, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "https://new.example.com/", got.URL)
	assert.Equal(t, 1, m.Len())
}

func TestCacheable(t *testing.T) {
	assert.True(t, Cacheable(sampleReport("https://example.com/")))

	blocked := sampleReport("https://example.com/")
	blocked.Blocked = true
	assert.False(t, Cacheable(blocked))

	timedOut := sampleReport("https://example.com/")
	timedOut.Timeout = true
	assert.False(t, Cacheable(timedOut))

	assert.False(t, Cacheable(nil))
}
