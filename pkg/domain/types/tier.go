package types

import "fmt"

// Tier represents where a memory record currently lives. Tiers are ordered
// by durability: a record only ever moves toward a more durable tier.
type Tier string

const (
	TierSession  Tier = "session"
	TierCache    Tier = "cache"
	TierDurable  Tier = "durable"
	TierSemantic Tier = "semantic"
)

// AllTiers returns all valid tiers in durability order
func AllTiers() []Tier {
	return []Tier{
		TierSession,
		TierCache,
		TierDurable,
		TierSemantic,
	}
}

// IsValid checks if the tier is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierSession,
		TierCache,
		TierDurable,
		TierSemantic:
		return true
	default:
		return false
	}
}

// Durability returns the rank of the tier on the promotion path. Higher
// values are more durable.
func (t Tier) Durability() int {
	switch t {
	case TierSession:
		return 0
	case TierCache:
		return 1
	case TierDurable:
		return 2
	case TierSemantic:
		return 2
	default:
		return -1
	}
}

// String returns the string representation of the tier
func (t Tier) String() string {
	return string(t)
}

// ParseTier parses a string into a Tier
func ParseTier(s string) (Tier, error) {
	tier := Tier(s)
	if !tier.IsValid() {
		return "", fmt.Errorf("invalid tier: %s", s)
	}
	return tier, nil
}
