package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/example/sirius-meet/internal/config"
	"github.com/example/sirius-meet/internal/logging"
)

var (
	version = "dev"
	cli     struct {
		Version  kong.VersionFlag
		Serve    serveCmd    `cmd:"" default:"1" help:"Run the meeting API."`
		Migrate  migrateCmd  `cmd:"" help:"Apply pending database migrations and exit."`
		Employee employeeCmd `cmd:"" help:"Manage the employee directory."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("meetd"),
		kong.Description("Sirius Meet backend. Configuration is read from SIRIUS_* environment variables."),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	err = cmd.Run(&globals{cfg: cfg, logger: logger, out: os.Stdout, version: version})
	cmd.FatalIfErrorf(err)
}
