package boardingservice

import (
	"context"
	"fmt"
	"net/http"

	"bus-boarding/internal/general/clock"
	"bus-boarding/internal/general/config"
	"bus-boarding/internal/general/contracts"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"
	"bus-boarding/internal/general/postgres"
	"bus-boarding/internal/general/rabbitmq"
	"bus-boarding/internal/general/server"
	"bus-boarding/internal/general/websocket"
	"bus-boarding/internal/ports"
	accounthandler "bus-boarding/internal/software/account/handler"
	accountservice "bus-boarding/internal/software/account/service"
	adminhandler "bus-boarding/internal/software/adminboard/handler"
	adminservice "bus-boarding/internal/software/adminboard/service"
	boardinghandler "bus-boarding/internal/software/boarding/handler"
	boardingservice "bus-boarding/internal/software/boarding/service"
	vehiclehandler "bus-boarding/internal/software/vehicles/handler"
	vehicleservice "bus-boarding/internal/software/vehicles/service"

	"github.com/go-chi/cors"
)

// Run wires the boarding API and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, maxConcurrent, prefetch int) error {
	// set up a new logger with a static request ID for startup logs
	logger := logger.New(contracts.ProducerBoardingService)
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load a config from file
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, map[string]any{"path": configPath})
		return err
	}

	// set up a Postgres connection pool and the schema
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
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)
	lineFeed := websocket.NewLineFeed(logger, jwtManager, collector)

	// connect to RabbitMQ when enabled; otherwise events are dropped
	var pub ports.EventPublisher = rabbitmq.DiscardPublisher{}
	if cfg.RabbitMQ.Enabled {
		rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()

		// broker confirms are awaited off the request path
		async := rabbitmq.NewAsyncPublisher(rabbitmq.NewMQPublisher(rmq), logger, collector, rabbitmq.DefaultQueueSize)
		defer async.Close()
		pub = async

		// live feed consumers
		go rmq.ConsumeForever(ctx, contracts.QueueVehicleLiveFeed, "boarding-live-feed", prefetch, lineFeed.HandleVehiclePosition)
		go rmq.ConsumeForever(ctx, contracts.QueueBoardingConfirmed, "boarding-demand-feed", prefetch, lineFeed.HandleBoardingConfirmed)
	} else {
		logger.Warn(ctx, "rabbitmq_disabled", "RabbitMQ disabled, domain events will not be published", nil)
	}

	// set up the necessary repos
	uow := postgres.NewUnitOfWork(pool)
	positionRepo := postgres.NewPositionRepo()
	requestRepo := postgres.NewRequestRepo()
	demandRepo := postgres.NewDemandRepo()
	userRepo := postgres.NewUserRepo()
	statsRepo := postgres.NewStatsRepo()

	// set up the services
	clk := clock.Real()
	vehicleSvc := vehicleservice.NewVehicleService(logger, uow, positionRepo, demandRepo, pub, collector, clk, contracts.ProducerBoardingService)
	boardingSvc := boardingservice.NewBoardingService(logger, uow, requestRepo, demandRepo, pub, collector, clk)
	accountSvc := accountservice.NewAccountService(logger, uow, userRepo, jwtManager, 0)
	adminSvc := adminservice.NewAdminService(uow, statsRepo, clk)

	// set up the HTTP handlers and their routes
	mux := http.NewServeMux()
	accounthandler.NewAccountHTTPHandler(accountSvc, logger, jwtManager).RegisterRoutes(mux)
	vehiclehandler.NewVehicleHTTPHandler(vehicleSvc, logger, jwtManager).RegisterRoutes(mux)
	boardinghandler.NewBoardingHTTPHandler(boardingSvc, logger, jwtManager, pool).RegisterRoutes(mux)
	adminhandler.NewAdminHTTPHandler(adminSvc, logger, jwtManager).RegisterRoutes(mux)
	mux.HandleFunc("GET /ws/lines/{line_id}", lineFeed.ConnectLine)
	mux.Handle("GET /metrics", collector.Handler())

	// middleware chain: metrics -> CORS -> concurrency limiter -> mux
	var h http.Handler = server.WithConcurrencyLimit(maxConcurrent, mux)
	h = cors.Handler(cors.Options{
		AllowedOrigins: cfg.Services.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})(h)
	h = server.WithMetrics(collector, h)

	srv := server.New(ctx, cfg.Services.BoardingServicePort, h)

	// log service start
	logger.Info(ctx, "service_started",
		fmt.Sprintf("Boarding Service started on port %d", cfg.Services.BoardingServicePort),
		map[string]any{"port": cfg.Services.BoardingServicePort, "max_concurrent": maxConcurrent, "rabbitmq": cfg.RabbitMQ.Enabled},
	)

	return server.Serve(ctx, srv, logger)
}
