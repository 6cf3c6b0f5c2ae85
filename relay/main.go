package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gravitational/kingpin"
	"github.com/gravitational/trace"

	"github.com/covalent-labs/teams-relay/lib"
	"github.com/covalent-labs/teams-relay/lib/logger"
)

var (
	appName                 = "teams-relay"
	gracefulShutdownTimeout = 15 * time.Second
	configPath              = "/etc/teams-relay.toml"
)

func main() {
	logger.Init()
	app := kingpin.New(appName, "Microsoft Teams message relay")

	app.Command("version", "Prints teams-relay version and exits")
	app.Command("configure", "Prints an example configuration file")

	startCmd := app.Command("start", "Starts the relay server")
	startConfigPath := startCmd.Flag("config", "TOML config file path").
		Short('c').
		Default(configPath).
		String()
	debug := startCmd.Flag("debug", "Enable verbose logging to stderr").
		Short('d').
		Bool()

	selectedCmd, err := app.Parse(os.Args[1:])
	if err != nil {
		lib.Bail(err)
	}

	switch selectedCmd {
	case "configure":
		fmt.Print(exampleConfig)
	case "version":
		lib.PrintVersion(app.Name, Version, Gitref)
	case "start":
		if err := run(*startConfigPath, *debug); err != nil {
			lib.Bail(err)
		} else {
			logger.Standard().Info("Successfully shut down")
		}
	}
}

func run(configPath string, debug bool) error {
	conf, err := LoadConfig(configPath)
	if err != nil {
		return trace.Wrap(err)
	}

	logConfig := conf.Log
	if debug {
		logConfig.Severity = "debug"
	}
	if err = logger.Setup(logConfig); err != nil {
		return err
	}
	if debug {
		logger.Standard().Debugf("DEBUG logging enabled")
	}

	app, err := NewApp(*conf)
	if err != nil {
		return trace.Wrap(err)
	}

	go lib.ServeSignals(app, gracefulShutdownTimeout)

	return trace.Wrap(
		app.Run(context.Background()),
	)
}
