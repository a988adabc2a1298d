package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lixenwraith/registry"
	"github.com/lixenwraith/registry/core"
	"github.com/urfave/cli/v3"
)

// usageError marks bad invocations
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "registryctl",
		Usage:     "inspect and update runtime configuration",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "configuration file",
			},
			&cli.StringFlag{
				Name:    "env-prefix",
				Aliases: []string{"e"},
				Usage:   "environment variable prefix",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password for configuration updates",
				Sources: cli.EnvVars("REGISTRYCTL_PASSWORD"),
			},
			// -v is taken by --version
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log resolution details to stderr",
			},
		},
		Commands: []*cli.Command{
			createListCommand(),
			createGetCommand(),
			createSetCommand(),
			createDumpCommand(),
			createDebugCommand(),
		},
	}
}

func createListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list every option with its value, source and error",
		Action: func(_ context.Context, cmd *cli.Command) error {
			reg, _, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			for _, ro := range reg.ConfigurationOptions() {
				source := ro.SourceName
				if source == "" {
					source = "default"
				}
				fmt.Fprintf(out, "%s = %s [%s]\n", ro.Key, ro.ValueAsString(), source)
				if ro.HasError() {
					fmt.Fprintf(out, "  ! %s\n", ro.ErrorMessage)
				}
			}
			return nil
		},
	}
}

func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the value of one option",
		ArgsUsage: "<key>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return &usageError{msg: "get takes exactly one key"}
			}
			reg, _, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			ro, err := reg.GetConfigurationOptionByKey(cmd.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, ro.ValueAsString())
			if ro.HasError() {
				fmt.Fprintln(cmd.Root().ErrWriter, ro.ErrorMessage)
			}
			return nil
		},
	}
}

func createSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "save a value",
		ArgsUsage: "<key> <value>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "name of the source to save to (default: the file)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return &usageError{msg: "set takes a key and a value"}
			}
			reg, file, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			source := cmd.String("source")
			if source == "" {
				source = file
			}
			if source == "" {
				return &usageError{msg: "set needs --file or --source"}
			}

			key, value := cmd.Args().Get(0), cmd.Args().Get(1)
			if err := reg.Save(key, value, source, cmd.String("password")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "saved %s to %s\n", key, source)
			return nil
		},
	}
}

func createDumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "print current values as TOML",
		Action: func(_ context.Context, cmd *cli.Command) error {
			reg, _, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			return reg.Dump(cmd.Root().Writer)
		},
	}
}

func createDebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "print values, defaults and source precedence",
		Action: func(_ context.Context, cmd *cli.Command) error {
			reg, _, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.Root().Writer, reg.Debug())
			return nil
		},
	}
}

// openRegistry builds a registry over [env, file] with the core options and
// returns it with the file's source name
func openRegistry(cmd *cli.Command) (*registry.Registry, string, error) {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: level}))

	file := cmd.String("file")
	reg, err := registry.NewBuilder().
		WithProviders(core.New()).
		WithEnvPrefix(cmd.String("env-prefix")).
		WithFile(file, registry.OptionalFile()).
		WithPasswordKey(core.PasswordKey).
		WithLogger(logger).
		Build()
	if err != nil && !errors.Is(err, registry.ErrConfigNotFound) {
		return nil, "", err
	}
	return reg, file, nil
}
