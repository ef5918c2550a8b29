package ir

// Version constants for the value encoding and the store engine.
const (
	// IRVersion is the value encoding version recorded in journals.
	IRVersion = "1"

	// EngineVersion is the tally engine version.
	EngineVersion = "0.1.0"
)
