package concierge

// Version is overwritten by ldflags on release builds.
var Version = "v0.0.0-dev"
