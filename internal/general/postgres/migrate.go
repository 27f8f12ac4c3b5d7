package postgres

import (
	"context"
	"fmt"
	"time"

	"bus-boarding/internal/general/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaLockKey serializes concurrent bootstraps across service instances.
const schemaLockKey int64 = 0x62757362 // "busb"

// migrationStep inspects the catalog and applies its statements only when the
// current shape differs from the desired one.
type migrationStep struct {
	name   string
	needed string // query returning a single boolean
	apply  []string
}

var schemaSteps = []migrationStep{
	{
		name:   "create_users",
		needed: `SELECT to_regclass('public.users') IS NULL`,
		apply: []string{`
			CREATE TABLE users (
				id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				name          TEXT NOT NULL DEFAULT '',
				email         TEXT NOT NULL,
				role          TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				CONSTRAINT users_email_key UNIQUE (email)
			)`,
		},
	},
	{
		name:   "create_requests",
		needed: `SELECT to_regclass('public.requests') IS NULL`,
		apply: []string{`
			CREATE TABLE requests (
				id           BIGSERIAL PRIMARY KEY,
				user_id      UUID REFERENCES users(id) ON DELETE CASCADE,
				origin       TEXT NOT NULL,
				line_id      TEXT NOT NULL,
				state        TEXT NOT NULL DEFAULT 'REQUESTED',
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				confirmed_at TIMESTAMPTZ
			)`,
		},
	},
	// Older deployments stored anonymous requests as (origin, destination, requested, created_at).
	{
		name: "requests_add_user_columns",
		needed: `SELECT NOT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = 'requests' AND column_name = 'user_id')`,
		apply: []string{
			`ALTER TABLE requests ADD COLUMN user_id UUID REFERENCES users(id) ON DELETE CASCADE`,
			`ALTER TABLE requests ADD COLUMN updated_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
			`ALTER TABLE requests ADD COLUMN confirmed_at TIMESTAMPTZ`,
		},
	},
	{
		name: "requests_rename_destination",
		needed: `SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = 'requests' AND column_name = 'destination')`,
		apply: []string{
			`ALTER TABLE requests RENAME COLUMN destination TO line_id`,
		},
	},
	{
		name: "requests_state_from_flag",
		needed: `SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = 'requests' AND column_name = 'requested')`,
		apply: []string{
			`ALTER TABLE requests ADD COLUMN IF NOT EXISTS state TEXT NOT NULL DEFAULT 'REQUESTED'`,
			`UPDATE requests SET state = CASE WHEN requested THEN 'REQUESTED' ELSE 'CONFIRMED' END`,
			`UPDATE requests SET confirmed_at = created_at WHERE state = 'CONFIRMED' AND confirmed_at IS NULL`,
			`ALTER TABLE requests DROP COLUMN requested`,
		},
	},
	{
		name: "requests_created_at_tz",
		needed: `SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = 'requests'
			  AND column_name = 'created_at' AND data_type = 'timestamp without time zone')`,
		apply: []string{
			`ALTER TABLE requests ALTER COLUMN created_at TYPE TIMESTAMPTZ USING created_at AT TIME ZONE 'UTC'`,
			`ALTER TABLE requests ALTER COLUMN created_at SET DEFAULT now()`,
		},
	},
	{
		// rows without an owner cannot take part in the one-request-per-user rule
		name: "requests_user_unique",
		needed: `SELECT NOT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conrelid = 'public.requests'::regclass AND conname = 'requests_user_id_key')`,
		apply: []string{
			`DELETE FROM requests WHERE user_id IS NULL`,
			`DELETE FROM requests r USING requests newer
			 WHERE r.user_id = newer.user_id AND r.id < newer.id`,
			`ALTER TABLE requests ALTER COLUMN user_id SET NOT NULL`,
			`ALTER TABLE requests ADD CONSTRAINT requests_user_id_key UNIQUE (user_id)`,
		},
	},
	{
		name: "requests_state_check",
		needed: `SELECT NOT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conrelid = 'public.requests'::regclass AND conname = 'requests_state_check')`,
		apply: []string{
			`ALTER TABLE requests ADD CONSTRAINT requests_state_check CHECK (state IN ('REQUESTED', 'CONFIRMED'))`,
		},
	},
	{
		name:   "create_line_demand",
		needed: `SELECT to_regclass('public.line_demand') IS NULL`,
		apply: []string{`
			CREATE TABLE line_demand (
				line_id             TEXT PRIMARY KEY,
				total_confirmations BIGINT NOT NULL DEFAULT 0 CHECK (total_confirmations >= 0),
				updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		},
	},
	// Demand keys used to keep their case; fold them into the upper-cased key.
	{
		name: "line_demand_normalize_keys",
		needed: `SELECT EXISTS (
			SELECT 1 FROM line_demand WHERE line_id <> upper(btrim(line_id)))`,
		apply: []string{`
			WITH moved AS (
				DELETE FROM line_demand
				WHERE line_id <> upper(btrim(line_id))
				RETURNING upper(btrim(line_id)) AS line_id, total_confirmations, updated_at
			)
			INSERT INTO line_demand (line_id, total_confirmations, updated_at)
			SELECT line_id, sum(total_confirmations)::bigint, max(updated_at)
			FROM moved
			GROUP BY line_id
			ON CONFLICT (line_id) DO UPDATE SET
				total_confirmations = line_demand.total_confirmations + EXCLUDED.total_confirmations,
				updated_at          = GREATEST(line_demand.updated_at, EXCLUDED.updated_at)`,
		},
	},
	{
		name:   "create_vehicle_positions",
		needed: `SELECT to_regclass('public.vehicle_positions') IS NULL`,
		apply: []string{`
			CREATE TABLE vehicle_positions (
				id          BIGSERIAL PRIMARY KEY,
				vehicle_id  TEXT NOT NULL,
				latitude    DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
				longitude   DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
				speed_mps   DOUBLE PRECISION,
				line_id     TEXT,
				recorded_at TIMESTAMPTZ NOT NULL,
				received_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		},
	},
	{
		name: "vehicle_positions_latest_idx",
		needed: `SELECT NOT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public' AND indexname = 'vehicle_positions_latest_idx')`,
		apply: []string{
			`CREATE INDEX vehicle_positions_latest_idx ON vehicle_positions (vehicle_id, recorded_at DESC, id DESC)`,
		},
	},
}

// EnsureSchema brings the database to the expected shape. It is safe to run on every
// start and from several instances at once: each step checks the catalog before
// mutating, and the whole run holds a transaction-scoped advisory lock.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *logger.Logger) error {
	start := time.Now()
	applied := make([]string, 0, len(schemaSteps))

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}

		for _, step := range schemaSteps {
			var needed bool
			if err := tx.QueryRow(ctx, step.needed).Scan(&needed); err != nil {
				return fmt.Errorf("inspect %s: %w", step.name, err)
			}
			if !needed {
				continue
			}
			for _, stmt := range step.apply {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("apply %s: %w", step.name, err)
				}
			}
			applied = append(applied, step.name)
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "schema_bootstrap_failed", "Failed to ensure database schema", err, map[string]any{
			"applied": applied,
		})
		return err
	}

	logger.Info(ctx, "schema_ready", "Database schema is up to date", map[string]any{
		"applied":     applied,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
