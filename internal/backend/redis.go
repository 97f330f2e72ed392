/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package backend implements route-tree leaf handles backed by Redis
// servers.
package backend

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/ratatosk/internal/routing"
	"github.com/friendsincode/ratatosk/internal/telemetry"
)

// Config contains backend connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultConfig returns default backend configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// prependScript prepends atomically; Redis has APPEND but no PREPEND.
var prependScript = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if old == false then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1] .. old, 'KEEPTTL')
return 1
`)

// Backend is a leaf route handle executing operations against one Redis
// server. Backends carry transport failures back as error-class reply
// results so parent strategies can fail over or reconcile them; a Go error
// is returned only when the dispatch itself cannot run.
type Backend struct {
	name   string
	client *redis.Client
	logger zerolog.Logger
}

// New creates a backend handle. The connection is established lazily; an
// unreachable server surfaces per-operation as connect errors, and the
// route tree decides what to do about them.
func New(cfg Config, logger zerolog.Logger) *Backend {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return &Backend{
		name:   "backend|" + cfg.Addr,
		client: client,
		logger: logger.With().Str("component", "backend").Str("addr", cfg.Addr).Logger(),
	}
}

// Name implements routing.Handle.
func (b *Backend) Name() string { return b.name }

// Close releases the connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Route implements routing.Handle.
func (b *Backend) Route(ctx context.Context, req *routing.Request) (*routing.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reply := b.execute(ctx, req)
	reply.Origin = b.name

	telemetry.BackendOperationsTotal.WithLabelValues(b.name, req.Op.String(), reply.Result.String()).Inc()

	if reply.Result.IsError() {
		b.logger.Debug().
			Str("op", req.Op.String()).
			Str("key", req.Key).
			Str("result", reply.Result.String()).
			Str("detail", reply.Message).
			Msg("backend operation failed")
	}

	return reply, nil
}

// CouldRouteTo implements routing.Handle. Backends are leaves.
func (b *Backend) CouldRouteTo(*routing.Request) []routing.Handle { return nil }

func (b *Backend) execute(ctx context.Context, req *routing.Request) *routing.Reply {
	ttl := time.Duration(req.Expire) * time.Second

	switch req.Op {
	case routing.OpGet, routing.OpGets:
		val, err := b.client.Get(ctx, req.Key).Bytes()
		if err == redis.Nil {
			return &routing.Reply{Result: routing.ResultNotFound}
		}
		if err != nil {
			return b.errorReply(err)
		}
		return &routing.Reply{Result: routing.ResultFound, Value: val, Flags: req.Flags}

	case routing.OpSet:
		if err := b.client.Set(ctx, req.Key, req.Value, ttl).Err(); err != nil {
			return b.errorReply(err)
		}
		return &routing.Reply{Result: routing.ResultStored}

	case routing.OpAdd:
		ok, err := b.client.SetNX(ctx, req.Key, req.Value, ttl).Result()
		if err != nil {
			return b.errorReply(err)
		}
		if !ok {
			return &routing.Reply{Result: routing.ResultNotStored}
		}
		return &routing.Reply{Result: routing.ResultStored}

	case routing.OpReplace:
		ok, err := b.client.SetXX(ctx, req.Key, req.Value, ttl).Result()
		if err != nil {
			return b.errorReply(err)
		}
		if !ok {
			return &routing.Reply{Result: routing.ResultNotStored}
		}
		return &routing.Reply{Result: routing.ResultStored}

	case routing.OpAppend:
		exists, err := b.client.Exists(ctx, req.Key).Result()
		if err != nil {
			return b.errorReply(err)
		}
		if exists == 0 {
			return &routing.Reply{Result: routing.ResultNotStored}
		}
		if err := b.client.Append(ctx, req.Key, string(req.Value)).Err(); err != nil {
			return b.errorReply(err)
		}
		return &routing.Reply{Result: routing.ResultStored}

	case routing.OpPrepend:
		stored, err := prependScript.Run(ctx, b.client, []string{req.Key}, req.Value).Int()
		if err != nil {
			return b.errorReply(err)
		}
		if stored == 0 {
			return &routing.Reply{Result: routing.ResultNotStored}
		}
		return &routing.Reply{Result: routing.ResultStored}

	case routing.OpDelete:
		n, err := b.client.Del(ctx, req.Key).Result()
		if err != nil {
			return b.errorReply(err)
		}
		if n == 0 {
			return &routing.Reply{Result: routing.ResultNotFound}
		}
		return &routing.Reply{Result: routing.ResultDeleted}

	case routing.OpTouch:
		ok, err := b.client.Expire(ctx, req.Key, ttl).Result()
		if err != nil {
			return b.errorReply(err)
		}
		if !ok {
			return &routing.Reply{Result: routing.ResultNotFound}
		}
		return &routing.Reply{Result: routing.ResultTouched}

	case routing.OpIncr:
		val, err := b.client.IncrBy(ctx, req.Key, int64(req.Delta)).Result()
		if err != nil {
			return b.errorReply(err)
		}
		return &routing.Reply{Result: routing.ResultFound, Value: []byte(strconv.FormatInt(val, 10))}

	case routing.OpDecr:
		val, err := b.client.DecrBy(ctx, req.Key, int64(req.Delta)).Result()
		if err != nil {
			return b.errorReply(err)
		}
		return &routing.Reply{Result: routing.ResultFound, Value: []byte(strconv.FormatInt(val, 10))}

	default:
		return routing.ErrorReply(routing.ResultRemoteError, b.name, "unsupported operation "+req.Op.String())
	}
}

func (b *Backend) errorReply(err error) *routing.Reply {
	return routing.ErrorReply(classifyError(err), b.name, err.Error())
}

// classifyError maps a transport or server error to a reply result so the
// route tree can order it against other replies.
func classifyError(err error) routing.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return routing.ResultTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return routing.ResultTimeout
		}
		return routing.ResultConnectError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return routing.ResultConnectError
	}

	return routing.ResultRemoteError
}
