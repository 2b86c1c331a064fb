package callcore

import (
	"time"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/clock"
	"github.com/opd-ai/callcore/group"
)

// DefaultIterationInterval is how often Run calls Iterate.
const DefaultIterationInterval = 50 * time.Millisecond

// Options tune a Coordinator. Zero values select the defaults of the call
// and group packages.
type Options struct {
	// MaxOfferAge is the oldest offer that still rings. Older group call
	// messages are dropped as well.
	MaxOfferAge time.Duration
	// SetupTimeout bounds the time from call creation to connection.
	SetupTimeout time.Duration
	// VideoRequestDebounce is the window over which video renderer
	// changes collapse into one request.
	VideoRequestDebounce time.Duration
	// PeekInterval is the period of peeks for group calls that are not
	// connected.
	PeekInterval      time.Duration
	IterationInterval time.Duration
	TimeProvider      clock.TimeProvider
}

func (o Options) withDefaults() Options {
	if o.MaxOfferAge <= 0 {
		o.MaxOfferAge = call.DefaultMaxOfferAge
	}
	if o.SetupTimeout <= 0 {
		o.SetupTimeout = call.DefaultSetupTimeout
	}
	if o.VideoRequestDebounce <= 0 {
		o.VideoRequestDebounce = group.DefaultVideoRequestDebounce
	}
	if o.PeekInterval <= 0 {
		o.PeekInterval = group.DefaultPeekInterval
	}
	if o.IterationInterval <= 0 {
		o.IterationInterval = DefaultIterationInterval
	}
	o.TimeProvider = clock.Or(o.TimeProvider)
	return o
}

func (o Options) callOptions() call.Options {
	return call.Options{
		MaxOfferAge:  o.MaxOfferAge,
		SetupTimeout: o.SetupTimeout,
		TimeProvider: o.TimeProvider,
	}
}

func (o Options) groupOptions() group.Options {
	return group.Options{
		VideoRequestDebounce: o.VideoRequestDebounce,
		PeekInterval:         o.PeekInterval,
		TimeProvider:         o.TimeProvider,
	}
}
