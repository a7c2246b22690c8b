package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketIsolation(t *testing.T) {
	svc := New(time.Minute, time.Minute)

	uploads := svc.Bucket("uploads")
	results := svc.Bucket("tool:web_search")

	uploads.Set("abc", "parsed content")
	results.Set("abc", "search result")

	v, ok := uploads.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "parsed content", v)

	v, ok = results.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "search result", v)
}

func TestBucketDelete(t *testing.T) {
	svc := New(time.Minute, time.Minute)
	b := svc.Bucket("uploads")

	b.Set("k", 1)
	b.Delete("k")

	_, ok := b.Get("k")
	assert.False(t, ok)
}

func TestNewFromConfigBadDurations(t *testing.T) {
	svc := NewFromConfig(Config{TTL: "nope", CleanupInterval: "also nope"})
	b := svc.Bucket("x")
	b.Set("k", "v")
	_, ok := b.Get("k")
	assert.True(t, ok)
}
