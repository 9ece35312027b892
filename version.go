package kslang

// Version and BuildDate identify a build. Release builds override them via
// -ldflags "-X".
var (
	Version   = "0.3.0-dev"
	BuildDate = "unknown"
)
