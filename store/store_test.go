package store

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreSetGet(t *testing.T) {
	s := NewInMemoryStore(time.Hour)

	require.NoError(t, s.Set("pages/dino.svg", []byte("<svg/>"), 0))

	data, found := s.Get("pages/dino.svg")
	assert.True(t, found)
	assert.Equal(t, []byte("<svg/>"), data)

	_, found = s.Get("pages/missing.svg")
	assert.False(t, found)
}

func TestInMemoryStoreExpiration(t *testing.T) {
	s := NewInMemoryStore(time.Hour)

	require.NoError(t, s.Set("pages/dino.svg", []byte("<svg/>"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found := s.Get("pages/dino.svg")
	assert.False(t, found)
}

func TestInMemoryStoreDeleteAndClear(t *testing.T) {
	s := NewInMemoryStore(time.Hour)

	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))

	require.NoError(t, s.Delete("a"))
	_, found := s.Get("a")
	assert.False(t, found)

	require.NoError(t, s.Clear())
	_, found = s.Get("b")
	assert.False(t, found)
}

func TestInMemoryStoreCleanup(t *testing.T) {
	s := NewInMemoryStore(time.Hour)

	require.NoError(t, s.Set("stale", []byte("1"), time.Nanosecond))
	require.NoError(t, s.Set("fresh", []byte("2"), time.Hour))
	time.Sleep(5 * time.Millisecond)

	s.cleanup()

	s.mutex.RLock()
	_, staleExists := s.entries["stale"]
	_, freshExists := s.entries["fresh"]
	s.mutex.RUnlock()
	assert.False(t, staleExists)
	assert.True(t, freshExists)
}

func TestArtifactManagerRoundTrip(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	m := NewArtifactManager(NewInMemoryStore(time.Hour), logger, time.Hour)

	require.NoError(t, m.Put("pages/dino.svg", []byte("<svg/>")))

	data, found := m.Fetch("pages/dino.svg")
	assert.True(t, found)
	assert.Equal(t, []byte("<svg/>"), data)

	require.NoError(t, m.Remove("pages/dino.svg"))
	_, found = m.Fetch("pages/dino.svg")
	assert.False(t, found)
}
