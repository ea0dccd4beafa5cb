package main

import (
	"context"
	"os"

	"github.com/tphakala/lifer/cmd"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/buildinfo"
)

// Build metadata, set with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	ctx := app.NewContext(buildinfo.NewContext(version, buildDate))

	rootCmd := cmd.RootCommand(ctx)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
