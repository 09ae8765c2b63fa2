package version

// Version is the current version of mama-talk.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/AndreyRyab/mama-talk/internal/version.Version=v1.0.0'"
var Version = "dev"
