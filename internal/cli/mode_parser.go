package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

const (
	ModeBoarding  = "boarding-service"
	ModeTelemetry = "telemetry-service"
	ModeTracker   = "tracker"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeBoarding, "boarding", "api", "b":
		return ModeBoarding, true
	case ModeTelemetry, "telemetry", "ingest", "t":
		return ModeTelemetry, true
	case ModeTracker, "track", "client":
		return ModeTracker, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `tracker --line=42`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for _, arg := range args {
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}

	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./bus-boarding --mode=<service> [flags]

Services (modes):
  boarding-service     HTTP API: accounts, boarding requests, nearby vehicles, live line feed
  telemetry-service    Vehicle position ingestion from NATS and GTFS-realtime
  tracker              Terminal client that follows a line from a stop and confirms boarding

Examples:
  ./bus-boarding --mode=boarding-service --max-concurrent=150
  ./bus-boarding --mode=telemetry-service --no-gtfsrt
  ./bus-boarding tracker --lat=-23.5505 --lon=-46.6333 --line=8000-10 --origin="Praça da Sé"`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *pflag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./bus-boarding --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
