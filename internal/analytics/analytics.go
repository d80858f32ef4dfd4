// Package analytics records product usage events as structured log lines.
package analytics

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Event string

const (
	PhotoCleaned      Event = "photoCleaned"
	OCRConfirmed      Event = "ocrConfirmed"
	CategoryConfirmed Event = "categoryConfirmed"
	CompsViewed       Event = "compsViewed"
	PriceSet          Event = "priceSet"
	PublishedSuccess  Event = "publishedSuccess"
	ExportUsed        Event = "exportUsed"
	SaleDetected      Event = "saleDetected"
)

// Tracker writes events to a zerolog logger. A nil *Tracker drops events.
type Tracker struct {
	logger zerolog.Logger
}

// NewTracker returns a tracker writing to the global logger.
func NewTracker() *Tracker {
	return &Tracker{logger: log.Logger}
}

// NewTrackerWithLogger returns a tracker writing to logger.
func NewTrackerWithLogger(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

func (t *Tracker) Track(event Event, fields map[string]any) {
	if t == nil {
		return
	}
	t.logger.Info().
		Str("event", string(event)).
		Fields(fields).
		Msg("analytics")
}
