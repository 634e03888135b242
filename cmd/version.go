package cmd

// Version is the application version.
// Set at build time via ldflags, e.g.
// go build -ldflags "-X github.com/cometlabs/comet/cmd.Version=1.0.0"
var Version = "0.1.0"
