package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
		Name     string `yaml:"database" validate:"required"`
		SSLMode  string `yaml:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	} `yaml:"database"`
	RabbitMQ struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	GTFSRT struct {
		VehiclePositionsURL string        `yaml:"vehicle_positions_url" validate:"omitempty,url"`
		PollInterval        time.Duration `yaml:"poll_interval"`
	} `yaml:"gtfsrt"`
	Services struct {
		BoardingServicePort  int      `yaml:"boarding_service" validate:"min=1,max=65535"`
		TelemetryServicePort int      `yaml:"telemetry_service" validate:"min=1,max=65535"`
		AllowedOrigins       []string `yaml:"allowed_origins"`
	} `yaml:"services"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		AccessTTL time.Duration `yaml:"access_ttl"`
	} `yaml:"jwt"`
	Tracking struct {
		BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		LoadingTimeout  time.Duration `yaml:"loading_timeout"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		RadiusKM        float64       `yaml:"radius_km" validate:"gte=0"`
		SubmitAttempts  int           `yaml:"submit_attempts" validate:"gte=1"`
		SubmitBaseDelay time.Duration `yaml:"submit_base_delay"`
		StateFile       string        `yaml:"state_file"`
	} `yaml:"tracking"`
}

// LoadFromFile loads config from a YAML file to a Config struct, applies environment
// overrides and defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// NATS
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = ">"
	}

	// GTFS-RT
	if cfg.GTFSRT.PollInterval == 0 {
		cfg.GTFSRT.PollInterval = 15 * time.Second
	}

	// Services
	if cfg.Services.BoardingServicePort == 0 {
		cfg.Services.BoardingServicePort = 5000
	}
	if cfg.Services.TelemetryServicePort == 0 {
		cfg.Services.TelemetryServicePort = 5001
	}
	if len(cfg.Services.AllowedOrigins) == 0 {
		cfg.Services.AllowedOrigins = []string{"*"}
	}

	// JWT
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = 2 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Tracking client
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Services.BoardingServicePort)
	}
	if cfg.Tracking.PollInterval == 0 {
		cfg.Tracking.PollInterval = 10 * time.Second
	}
	if cfg.Tracking.LoadingTimeout == 0 {
		cfg.Tracking.LoadingTimeout = 15 * time.Second
	}
	if cfg.Tracking.RequestTimeout == 0 {
		cfg.Tracking.RequestTimeout = 8 * time.Second
	}
	if cfg.Tracking.RadiusKM == 0 {
		cfg.Tracking.RadiusKM = 2
	}
	if cfg.Tracking.SubmitAttempts == 0 {
		cfg.Tracking.SubmitAttempts = 3
	}
	if cfg.Tracking.SubmitBaseDelay == 0 {
		cfg.Tracking.SubmitBaseDelay = time.Second
	}
	if cfg.Tracking.StateFile == "" {
		cfg.Tracking.StateFile = ".bus-boarding-session.json"
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Namespace()), fe.Tag()))
		}
	}

	// RabbitMQ credentials only matter when the broker is in use
	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	}

	if c.Tracking.PollInterval < time.Second {
		problems = append(problems, "tracking.poll_interval must be >= 1s")
	}
	if c.GTFSRT.PollInterval < time.Second {
		problems = append(problems, "gtfsrt.poll_interval must be >= 1s")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
