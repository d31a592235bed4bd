package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables the repositories use. The two partial unique
// indexes hold the rider and driver exclusivity rules at write time.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL UNIQUE,
	phone          TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL,
	account_status TEXT NOT NULL DEFAULT 'ACTIVE',
	is_verified    BOOLEAN NOT NULL DEFAULT FALSE,
	rides          TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drivers (
	id                 TEXT PRIMARY KEY REFERENCES users (id),
	license_number     TEXT NOT NULL UNIQUE,
	vehicle_type       TEXT NOT NULL,
	vehicle_model      TEXT NOT NULL DEFAULT '',
	plate_number       TEXT NOT NULL,
	application_status TEXT NOT NULL DEFAULT 'PENDING',
	account_status     TEXT NOT NULL DEFAULT 'ACTIVE',
	availability       TEXT NOT NULL DEFAULT 'OFFLINE',
	completed_rides    TEXT[] NOT NULL DEFAULT '{}',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rides (
	id                    TEXT PRIMARY KEY,
	rider_id              TEXT NOT NULL REFERENCES users (id),
	driver_id             TEXT REFERENCES drivers (id),
	pickup                TEXT NOT NULL,
	destination           TEXT NOT NULL,
	distance              DOUBLE PRECISION NOT NULL CHECK (distance > 0),
	fare                  DOUBLE PRECISION NOT NULL,
	payment_method        TEXT NOT NULL,
	status                TEXT NOT NULL,
	transition_timestamps JSONB NOT NULL DEFAULT '{}',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS drivers_plate_number_key
	ON drivers (plate_number) WHERE plate_number <> '';

CREATE INDEX IF NOT EXISTS rides_created_at_idx ON rides (created_at DESC);

CREATE UNIQUE INDEX IF NOT EXISTS rides_one_open_per_rider
	ON rides (rider_id) WHERE status NOT IN ('COMPLETED', 'CANCELLED', 'REJECTED');

CREATE UNIQUE INDEX IF NOT EXISTS rides_one_active_per_driver
	ON rides (driver_id) WHERE status IN ('ACCEPTED', 'PICKED_UP', 'IN_TRANSIT');
`

// Migrate applies Schema. It is safe to run on every start.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
