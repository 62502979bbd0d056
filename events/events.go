package events

import (
	"github.com/ethereum/go-ethereum/event"
	"time"
)

// ProviderChange is broadcast by a host when the location provider is
// switched on or off, or when location permission changes.
// Receivers should treat it as a hint to re-read the current state,
// not as the state itself; polling remains the source of truth.
type ProviderChange struct {
	LocationEnabled *bool `json:",omitempty"`
	Permission      *bool `json:",omitempty"`
	Time            time.Time
}

// ProviderChangeFeed is the feed type hosts send ProviderChange events on.
type ProviderChangeFeed = event.FeedOf[ProviderChange]
