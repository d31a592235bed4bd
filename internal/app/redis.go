package app

import (
	"context"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridecore/internal/config"
	internalRedis "ridecore/internal/redis"
)

// NewRedisClient connects to Redis when cfg.Enabled is set and returns
// nil, nil otherwise. Commands are traced as New Relic datastore segments
// named after the key family they touch.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if nrApp != nil {
		client.AddHook(datastoreHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// datastoreHook records each command against the transaction on its context.
type datastoreHook struct{}

func (datastoreHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (datastoreHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		defer startDatastoreSegment(ctx, cmd.Name(), collection(cmd)).End()
		return next(ctx, cmd)
	}
}

func (datastoreHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		family := "other"
		if len(cmds) > 0 {
			family = collection(cmds[0])
		}
		defer startDatastoreSegment(ctx, "pipeline", family).End()
		return next(ctx, cmds)
	}
}

func startDatastoreSegment(ctx context.Context, operation, family string) *newrelic.DatastoreSegment {
	return &newrelic.DatastoreSegment{
		StartTime:  newrelic.FromContext(ctx).StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  operation,
		Collection: family,
	}
}

// collection returns the key family of the first key cmd touches.
func collection(cmd redis.Cmder) string {
	args := cmd.Args()
	keyAt := 1
	switch cmd.Name() {
	case "eval", "evalsha":
		// eval script numkeys key [key ...]
		keyAt = 3
	}
	if len(args) <= keyAt {
		return "other"
	}
	key, ok := args[keyAt].(string)
	if !ok {
		return "other"
	}
	return internalRedis.KeyFamily(key)
}
