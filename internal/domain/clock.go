package domain

import "github.com/jonboulle/clockwork"

// clock stamps ProcessedAt on enriched events. The apparent temperature
// computation never reads it.
var clock = clockwork.NewRealClock()

// SetClock replaces the time source used by EnrichReadingEvent. Pass nil to
// restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
