package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	boardingservice "bus-boarding/cmd/boarding_service"
	telemetryservice "bus-boarding/cmd/telemetry_service"
	trackerapp "bus-boarding/cmd/tracker"
	"bus-boarding/internal/cli"

	"github.com/spf13/pflag"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the service specified by the mode flag
	switch mode {

	case cli.ModeBoarding:
		fs := pflag.NewFlagSet(cli.ModeBoarding, pflag.ContinueOnError)
		configPath := fs.String("config", defaultConfigPath, "Path to the YAML configuration")
		maxConc := fs.Int("max-concurrent", 100, "Maximum number of concurrent HTTP requests to process")
		prefetch := fs.Int("prefetch", 8, "RabbitMQ prefetch count for the live feed consumers")
		cli.AttachUsage(fs, cli.ModeBoarding)

		parseOrExit(fs, svcArgs)
		if *maxConc < 1 {
			usageError(fs, "--max-concurrent must be >= 1")
		}
		if *prefetch <= 0 {
			usageError(fs, "--prefetch must be > 0")
		}
		if err := boardingservice.Run(ctx, *configPath, *maxConc, *prefetch); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeTelemetry:
		fs := pflag.NewFlagSet(cli.ModeTelemetry, pflag.ContinueOnError)
		configPath := fs.String("config", defaultConfigPath, "Path to the YAML configuration")
		maxConc := fs.Int("max-concurrent", 20, "Maximum number of concurrent HTTP requests to process")
		noNATS := fs.Bool("no-nats", false, "Do not subscribe to simulator positions on NATS")
		noGTFSRT := fs.Bool("no-gtfsrt", false, "Do not poll the GTFS-realtime feed")
		cli.AttachUsage(fs, cli.ModeTelemetry)

		parseOrExit(fs, svcArgs)
		if *maxConc < 1 {
			usageError(fs, "--max-concurrent must be >= 1")
		}
		if err := telemetryservice.Run(ctx, telemetryservice.Options{
			ConfigPath:    *configPath,
			MaxConcurrent: *maxConc,
			NoNATS:        *noNATS,
			NoGTFSRT:      *noGTFSRT,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeTracker:
		fs := pflag.NewFlagSet(cli.ModeTracker, pflag.ContinueOnError)
		configPath := fs.String("config", defaultConfigPath, "Path to the YAML configuration")
		stateFile := fs.String("state-file", "", "Where the session is remembered (defaults to tracking.state_file)")
		lat := fs.Float64("lat", 0, "Latitude of your stop")
		lon := fs.Float64("lon", 0, "Longitude of your stop")
		line := fs.StringP("line", "l", "", "Line you want to board")
		origin := fs.String("origin", "", "Name of your stop")
		email := fs.String("email", "", "Account email (first run)")
		password := fs.String("password", os.Getenv("BOARDING_PASSWORD"), "Account password, defaults to $BOARDING_PASSWORD")
		token := fs.String("token", "", "Bearer token to use instead of logging in")
		cli.AttachUsage(fs, cli.ModeTracker)

		parseOrExit(fs, svcArgs)
		hasStop := fs.Changed("lat") || fs.Changed("lon")
		if hasStop && !(fs.Changed("lat") && fs.Changed("lon")) {
			usageError(fs, "--lat and --lon must be given together")
		}
		if err := trackerapp.Run(ctx, trackerapp.Options{
			ConfigPath: *configPath,
			StateFile:  *stateFile,
			HasStop:    hasStop,
			Latitude:   *lat,
			Longitude:  *lon,
			Line:       *line,
			Origin:     *origin,
			Email:      *email,
			Password:   *password,
			Token:      *token,
		}, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func parseOrExit(fs *pflag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func usageError(fs *pflag.FlagSet, msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	fs.Usage()
	os.Exit(2)
}
