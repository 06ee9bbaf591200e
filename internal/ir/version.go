package ir

// Version constants for the IR schema and generator.
const (
	// IRVersion is the graph IR schema version.
	IRVersion = "1"

	// GeneratorVersion is the tensorgen code generator version.
	GeneratorVersion = "0.1.0"
)
