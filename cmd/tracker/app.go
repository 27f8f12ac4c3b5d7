package trackerapp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"bus-boarding/internal/domain/eta"
	"bus-boarding/internal/domain/geo"
	"bus-boarding/internal/general/apiclient"
	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/config"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"
	"bus-boarding/internal/software/tracker"
)

// Options are the command-line inputs of the tracker.
type Options struct {
	ConfigPath string
	StateFile  string

	// New request; HasStop is false when the saved one should be resumed.
	HasStop   bool
	Latitude  float64
	Longitude float64
	Line      string
	Origin    string

	Email    string
	Password string
	Token    string
}

// Run files (or resumes) a boarding request and follows the line until the user
// confirms, quits or ctx is cancelled. Commands are read from in, output goes to out.
func Run(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	logger := logger.NewWithWriter("tracker", os.Stderr)
	ctx = logger.WithRequestID(ctx, "tracker-001")

	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, map[string]any{"path": opts.ConfigPath})
		return err
	}

	statePath := cfg.Tracking.StateFile
	if opts.StateFile != "" {
		statePath = opts.StateFile
	}
	store := tracker.FileStore{Path: statePath}
	local, err := store.Load()
	if err != nil {
		return err
	}

	api, err := apiclient.New(cfg.Tracking.BaseURL, cfg.Tracking.RequestTimeout)
	if err != nil {
		return err
	}
	clk := clock.Real()

	// credentials: flag, then saved token, then login
	token := opts.Token
	if token == "" {
		token = local.Token
	}
	if token == "" {
		if opts.Email == "" || opts.Password == "" {
			return errors.New("no saved session: pass --token or --email and --password")
		}
		lctx, cancel := context.WithTimeout(ctx, cfg.Tracking.RequestTimeout)
		auth, err := api.Login(lctx, opts.Email, opts.Password)
		cancel()
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		token = auth.Token
		fmt.Fprintf(out, "Logged in as %s\n", opts.Email)
	}
	local.Token = token

	// file a new request when a stop was given
	if opts.HasStop {
		stop, err := geo.NewPoint(opts.Latitude, opts.Longitude)
		if err != nil {
			return fmt.Errorf("%w: %w", ports.ErrInvalidInput, err)
		}
		if strings.TrimSpace(opts.Line) == "" {
			return fmt.Errorf("%w: --line is required with a stop", ports.ErrInvalidInput)
		}
		origin := opts.Origin
		if origin == "" {
			origin = fmt.Sprintf("%.6f,%.6f", stop.Latitude, stop.Longitude)
		}

		res, err := tracker.SubmitWithRetry(ctx, api, clk, tracker.RetryPolicy{
			Attempts:  cfg.Tracking.SubmitAttempts,
			BaseDelay: cfg.Tracking.SubmitBaseDelay,
		}, token, origin, opts.Line)
		if err != nil {
			if apiclient.IsUnauthenticated(err) {
				local.Token = ""
				local.Pending = false
				_ = store.Save(local)
			}
			return fmt.Errorf("file boarding request: %w", err)
		}
		fmt.Fprintf(out, "%s (request %d)\n", res.Message, res.ID)
		local = tracker.NewLocalState(token, stop, opts.Line, origin)
	}

	if err := store.Save(local); err != nil {
		return err
	}
	if !local.Ready() {
		return errors.New("no pending boarding request: pass --lat, --lon and --line")
	}

	invalid := make(chan error, 1)
	session := tracker.NewSession(api, clk, store, local, tracker.Observer{
		OnUpdate: func(u tracker.Update) { printUpdate(out, u) },
		OnAlert: func(bus ports.BusView, e eta.Estimate) {
			fmt.Fprintf(out, "\a>>> Bus %s is arriving (%s). Get ready to board!\n", bus.BusID, e.Display())
		},
		OnError: func(err error) {
			logger.Warn(ctx, "tracker_poll_failed", "Nearby query failed", map[string]any{"error": err.Error()})
		},
		OnSessionInvalid: func(err error) {
			select {
			case invalid <- err:
			default:
			}
		},
	}, tracker.Options{
		RadiusKM:       cfg.Tracking.RadiusKM,
		PollInterval:   cfg.Tracking.PollInterval,
		LoadingTimeout: cfg.Tracking.LoadingTimeout,
		RequestTimeout: cfg.Tracking.RequestTimeout,
	})

	fmt.Fprintln(out, "Loading vehicles...")
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop()

	fmt.Fprintf(out, "Following line %s from %s. Type \"confirm\" when you board, \"quit\" to stop.\n", local.Line, local.Origin)

	commands := make(chan string)
	go readCommands(ctx, in, commands)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-invalid:
			fmt.Fprintln(out, "Session expired, log in again.")
			return err

		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			switch cmd {
			case "confirm", "c":
				cctx, cancel := context.WithTimeout(ctx, cfg.Tracking.RequestTimeout)
				res, err := session.Confirm(cctx)
				cancel()
				switch {
				case err == nil:
					fmt.Fprintln(out, res.Message)
					return nil
				case errors.Is(err, ports.ErrUnauthenticated):
					fmt.Fprintln(out, "Session expired, log in again.")
					return err
				case errors.Is(err, ports.ErrNoActiveRequest):
					fmt.Fprintln(out, "No active boarding request.")
					return err
				default:
					fmt.Fprintf(out, "Confirmation failed: %v\n", err)
				}
			case "quit", "stop", "q":
				return nil
			case "":
			default:
				fmt.Fprintf(out, "unknown command %q\n", cmd)
			}
		}
	}
}

func readCommands(ctx context.Context, in io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case out <- strings.ToLower(strings.TrimSpace(sc.Text())):
		case <-ctx.Done():
			return
		}
	}
}

func printUpdate(out io.Writer, u tracker.Update) {
	stamp := u.LastUpdate.Local().Format(time.TimeOnly)
	if u.Nearest == nil {
		fmt.Fprintf(out, "[%s] no buses nearby\n", stamp)
		return
	}
	fmt.Fprintf(out, "[%s] %d bus(es) nearby, nearest %s at %.0f m, ETA %s\n",
		stamp, len(u.Buses), u.Nearest.BusID, u.Nearest.DistanceMeters, u.ETA.Display())
}
