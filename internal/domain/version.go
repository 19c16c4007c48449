package domain

// Version constants for wire payloads.
const (
	// CardVersion is the presentation envelope version carried on every Card.
	CardVersion = "1"

	// SignalVersion is the autopilot signal payload version.
	SignalVersion = "1"
)
