package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// subcommands take over argument parsing from the viewer flags.
var subcommands = map[string]func(args []string, stdout io.Writer) error{
	"gen": runGen,
	"db":  runDB,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		if sub, ok := subcommands[args[0]]; ok {
			if err := sub(args[1:], stdout); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			return 0
		}
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprint(stdout, usage(flags))
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, usage(flags))
		return 2
	}

	if showVersion, _ := flags.GetBool("version"); showVersion {
		fmt.Fprintf(stdout, "vxlview - VXL Log Viewer\n")
		fmt.Fprintf(stdout, "  Version:    %s\n", version)
		fmt.Fprintf(stdout, "  Commit:     %s\n", commit)
		fmt.Fprintf(stdout, "  Built:      %s\n", buildTime)
		fmt.Fprintf(stdout, "  Go version: %s\n", goVersion)
		return 0
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	if err := dispatch(cfg, flags, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "Error: %v\n\n%s", err, usage(flags))
			return 2
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
