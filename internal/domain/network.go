package domain

import "time"

// Effective connection types, following the browser NetworkInformation API.
const (
	Effective4G     = "4g"
	Effective3G     = "3g"
	Effective2G     = "2g"
	EffectiveSlow2G = "slow-2g"
)

// NetworkState is an immutable snapshot of connectivity.
type NetworkState struct {
	Online        bool
	Since         time.Time
	LastOnlineAt  time.Time
	LastOfflineAt time.Time
	EffectiveType string
	RTT           time.Duration
}

// ClassifyRTT maps a round-trip time to an effective connection type.
func ClassifyRTT(rtt time.Duration) string {
	switch {
	case rtt <= 0:
		return ""
	case rtt < 270*time.Millisecond:
		return Effective4G
	case rtt < 1400*time.Millisecond:
		return Effective3G
	case rtt < 2000*time.Millisecond:
		return Effective2G
	default:
		return EffectiveSlow2G
	}
}
