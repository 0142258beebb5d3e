package psi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithoutKeyDisablesProbe(t *testing.T) {
	assert.Nil(t, New("", zap.NewNop()))
}

func TestPerformanceScore(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/", r.URL.Query().Get("url"))
		assert.Equal(t, "performance", r.URL.Query().Get("category"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.83}}}}`))
	}))
	defer ts.Close()

	c := NewWithEndpoint(ts.URL, "test-key", zap.NewNop())
	score, err := c.PerformanceScore(context.Background(), "https://example.com/", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 83, score)
}

func TestPerformanceScoreRounding(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.695}}}}`))
	}))
	defer ts.Close()

	c := NewWithEndpoint(ts.URL, "k", zap.NewNop())
	score, err := c.PerformanceScore(context.Background(), "https://example.com/", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 70, score)
}

func TestPerformanceScoreErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ts.Close()

		c := NewWithEndpoint(ts.URL, "k", zap.NewNop())
		_, err := c.PerformanceScore(context.Background(), "https://example.com/", 2*time.Second)
		assert.Error(t, err)
	})

	t.Run("missing score", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"lighthouseResult":{"categories":{}}}`))
		}))
		defer ts.Close()

		c := NewWithEndpoint(ts.URL, "k", zap.NewNop())
		_, err := c.PerformanceScore(context.Background(), "https://example.com/", 2*time.Second)
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer ts.Close()

		c := NewWithEndpoint(ts.URL, "k", zap.NewNop())
		_, err := c.PerformanceScore(context.Background(), "https://example.com/", 50*time.Millisecond)
		assert.Error(t, err)
	})
}
