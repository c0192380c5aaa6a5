package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

func TestSeverityForEvent(t *testing.T) {
	assert.Equal(t, models.AlertSeverityHigh, severityFor(models.EventRetreadThreshold))
	assert.Equal(t, models.AlertSeverityHigh, severityFor(models.EventTireScrapped))
	assert.Equal(t, models.AlertSeverityMedium, severityFor(models.EventTireSentToRetread))
	assert.Equal(t, models.AlertSeverityLow, severityFor(models.EventTireInstalled))
	assert.Equal(t, models.AlertSeverityLow, severityFor(models.EventTireReleased))
	assert.Equal(t, models.AlertSeverityLow, severityFor(models.EventTireRetreadReturned))
}

func TestSeverityForUnknownEventDefaultsLow(t *testing.T) {
	assert.Equal(t, models.AlertSeverityLow, severityFor("something_new"))
}
