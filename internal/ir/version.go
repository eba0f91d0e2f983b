package ir

// Version constants for the canonical encoding and engine.
const (
	// EncodingVersion is the first byte of every canonical operation encoding.
	EncodingVersion byte = 1

	// EngineVersion is the spotter engine version.
	EngineVersion = "0.1.0"
)
