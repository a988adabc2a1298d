// registryctl inspects and updates a configuration file through the registry's
// resolution and save pipeline, using the core option set.
//
// Usage:
//
//	registryctl [global options] <command> [arguments]
//
// Global options:
//
//	-f, --file        configuration file (.toml, .yaml, .json, .properties)
//	-e, --env-prefix  environment variable prefix (monitor.active reads <prefix>MONITOR_ACTIVE)
//	-p, --password    password for updates (env: REGISTRYCTL_PASSWORD)
//	--verbose         log resolution details to stderr
//
// Commands:
//
//	list               list every option with its value, source and error
//	get <key>          print the value of one option
//	set <key> <value>  save a value (to the file unless --source is given)
//	dump               print current values as TOML
//	debug              print values, defaults and source precedence
//
// Sources, highest priority first: environment, file. The password for set is
// the file's monitor.password; when it is absent, updates are refused.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)
	if err := app.Run(context.Background(), args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "usage error: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
