package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitConversionRoundTrip(t *testing.T) {
	assert.InDelta(t, 1.0, MilesToKm*KmToMiles, 1e-4)
	assert.InDelta(t, 26.2, 26.2*MilesToKm*KmToMiles, 1e-3)
}

func TestPace(t *testing.T) {
	assert.Equal(t, 5.0, Pace(10, 50))
	assert.Equal(t, 0.0, Pace(0, 30))
}
