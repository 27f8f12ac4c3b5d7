package telemetryservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/config"
	"bus-boarding/internal/general/contracts"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/general/postgres"
	"bus-boarding/internal/general/rabbitmq"
	"bus-boarding/internal/general/server"
	"bus-boarding/internal/ports"
	"bus-boarding/internal/software/telemetry/gtfsrt"
	"bus-boarding/internal/software/telemetry/natsingest"
	vehicleservice "bus-boarding/internal/software/vehicles/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Options selects the telemetry sources.
type Options struct {
	ConfigPath    string
	MaxConcurrent int
	NoNATS        bool
	NoGTFSRT      bool
}

// Run wires the telemetry ingesters and blocks until ctx is cancelled or one of them fails.
func Run(ctx context.Context, opts Options) error {
	logger := logger.New(contracts.ProducerTelemetryService)
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, map[string]any{"path": opts.ConfigPath})
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
		logger.Error(ctx, "db_schema_failed", "Failed to prepare database schema", err, nil)
		return err
	}

	collector := metrics.NewCollector()

	var pub ports.EventPublisher = rabbitmq.DiscardPublisher{}
	if cfg.RabbitMQ.Enabled {
		rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()

		async := rabbitmq.NewAsyncPublisher(rabbitmq.NewMQPublisher(rmq), logger, collector, rabbitmq.DefaultQueueSize)
		defer async.Close()
		pub = async
	}

	clk := clock.Real()
	svc := vehicleservice.NewVehicleService(logger, postgres.NewUnitOfWork(pool), postgres.NewPositionRepo(),
		postgres.NewDemandRepo(), pub, collector, clk, contracts.ProducerTelemetryService)

	g, gctx := errgroup.WithContext(ctx)

	// simulator positions over NATS
	if !opts.NoNATS {
		nc, err := natsingest.Connect(cfg.NATS.URL, logger, collector)
		if err != nil {
			logger.Error(ctx, "nats_connection_failed", "Failed to connect to NATS", err, map[string]any{"url": cfg.NATS.URL})
			return err
		}
		defer nc.Close()

		sub := natsingest.NewSubscriber(svc, logger, collector, cfg.NATS.Subject)
		g.Go(func() error { return sub.Run(gctx, nc) })
	}

	// GTFS-realtime feed
	if !opts.NoGTFSRT && cfg.GTFSRT.VehiclePositionsURL != "" {
		poller := gtfsrt.NewPoller(svc, logger, collector, clk, cfg.GTFSRT.VehiclePositionsURL, cfg.GTFSRT.PollInterval)
		g.Go(func() error { return poller.Run(gctx) })
	} else {
		logger.Info(ctx, "gtfsrt_disabled", "GTFS-RT polling disabled", nil)
	}

	// health and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(pool))
	mux.Handle("GET /metrics", collector.Handler())
	h := server.WithMetrics(collector, server.WithConcurrencyLimit(opts.MaxConcurrent, mux))
	srv := server.New(gctx, cfg.Services.TelemetryServicePort, h)
	g.Go(func() error { return server.Serve(gctx, srv, logger) })

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Telemetry Service started on port %d", cfg.Services.TelemetryServicePort),
		map[string]any{
			"port":   cfg.Services.TelemetryServicePort,
			"nats":   !opts.NoNATS,
			"gtfsrt": !opts.NoGTFSRT && cfg.GTFSRT.VehiclePositionsURL != "",
		},
	)

	return g.Wait()
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, body := http.StatusOK, map[string]string{"status": "ok", "database": "ok"}
		if err := pool.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
