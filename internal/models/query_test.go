package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStorable(t *testing.T) {
	assert.True(t, Storable(Earliest))
	assert.True(t, Storable(Latest))
	assert.True(t, Storable(time.Date(1965, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, Storable(Earliest.Add(-time.Nanosecond)))
	assert.False(t, Storable(time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1677, Earliest.Year())
	assert.Equal(t, 2262, Latest.Year())
}

func TestEndOfDay(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 2, 23, 59, 59, 999999999, time.UTC), EndOfDay(day))
}
