package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// applyEnv overlays well-known environment variables on top of the file values.
// A .env file in the working directory is loaded first when present.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	setString(&cfg.Database.Host, "DATABASE_HOST")
	setInt(&cfg.Database.Port, "DATABASE_PORT")
	setString(&cfg.Database.User, "DATABASE_USER")
	setString(&cfg.Database.Password, "DATABASE_PASSWORD")
	setString(&cfg.Database.Name, "DATABASE_NAME")

	setString(&cfg.RabbitMQ.Host, "RABBITMQ_HOST")
	setInt(&cfg.RabbitMQ.Port, "RABBITMQ_PORT")
	setString(&cfg.RabbitMQ.User, "RABBITMQ_USER")
	setString(&cfg.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	if v, ok := lookup("RABBITMQ_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RabbitMQ.Enabled = b
		}
	}

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.GTFSRT.VehiclePositionsURL, "GTFSRT_VEHICLE_POSITIONS_URL")
	setString(&cfg.JWT.SecretKey, "JWT_SECRET")
	setString(&cfg.Tracking.BaseURL, "BOARDING_API_URL")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
