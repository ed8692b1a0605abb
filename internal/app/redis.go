package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"cabride/internal/config"
)

// NewRedisClient connects to Redis. Commands are traced as New Relic datastore
// segments when nrApp is set.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := redis.NewClient(opts)

	if nrApp != nil {
		client.AddHook(datastoreHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// datastoreHook wraps every command in a segment of the request's transaction.
type datastoreHook struct{}

func (datastoreHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (datastoreHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		defer startSegment(ctx, cmd.Name(), keyspace(cmd)).End()
		return next(ctx, cmd)
	}
}

func (datastoreHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		collection := "pipeline"
		if len(cmds) > 0 {
			collection = keyspace(cmds[0])
		}
		defer startSegment(ctx, "pipeline", collection).End()
		return next(ctx, cmds)
	}
}

// startSegment returns a started segment, or a nil one when ctx carries no
// transaction. Ending a nil segment is a no-op.
func startSegment(ctx context.Context, op, collection string) *newrelic.DatastoreSegment {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}
	return &newrelic.DatastoreSegment{
		StartTime:  txn.StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  op,
		Collection: collection,
	}
}

// keyspace names the segment after the key prefix, e.g. "cache" for "cache:driver:42".
func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	pos := 1
	switch strings.ToLower(cmd.Name()) {
	case "eval", "evalsha":
		pos = 3
	}
	if len(args) <= pos {
		return "redis"
	}
	key, ok := args[pos].(string)
	if !ok || key == "" {
		return "redis"
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
