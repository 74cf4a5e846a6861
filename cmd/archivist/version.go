package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

// Build information populated at init() from debug.ReadBuildInfo().
var (
	Version   = "unknown"
	GoVersion = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
	Modified  bool
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	Version = info.Main.Version
	GoVersion = info.GoVersion

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.time":
			BuildTime = setting.Value
		case "vcs.modified":
			Modified = setting.Value == "true"
		}
	}
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(ctx context.Context, command *cli.Command) error {
		w := command.Root().Writer
		_, _ = fmt.Fprintf(w, "archivist %s (%s)\n", Version, GoVersion)
		if Commit != "unknown" {
			dirty := ""
			if Modified {
				dirty = " (dirty)"
			}
			_, _ = fmt.Fprintf(w, "commit: %s%s\n", Commit, dirty)
		}
		if BuildTime != "unknown" {
			_, _ = fmt.Fprintf(w, "built: %s\n", BuildTime)
		}
		return nil
	},
}
