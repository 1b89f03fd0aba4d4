package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"rentals/internal/app/commands"
	"rentals/internal/app/policies"
	"rentals/internal/domain/shared/clock"
)

// IdempotentCommand is implemented by commands that want replay protection.
// ResultPrototype returns a fresh pointer of the handler's result type.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key        string
	Command    string
	Payload    []byte
	OccurredAt time.Time
	ExpiresAt  time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	// ErrIdempotencyKeyReused reports a key replayed with a different command.
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key already used by another command")
)

type IdempotencyOptions struct {
	Codec ResultCodec
	TTL   time.Duration
	Clock clock.Clock
}

// Idempotency replays the stored result of a successful command that carries
// a key seen before. Keys are scoped to the calling user, so two callers
// never share results. Concurrent requests with one key run the command once;
// a duplicate whose leader is canceled takes over the work itself.
// Failed commands are not recorded and may be retried.
func Idempotency(store IdempotencyStore, opts IdempotencyOptions) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if opts.Codec == nil {
		opts.Codec = JSONResultCodec{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	var inflight singleflight.Group
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := scopedKey(cmd, idCmd.IdempotencyKey())
			for {
				ch := inflight.DoChan(key, func() (any, error) {
					return runOnce(ctx, store, opts, key, idCmd, nextFn)
				})
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case res := <-ch:
					if res.Err != nil {
						// The flight belonged to a caller that went away.
						if isContextErr(res.Err) && ctx.Err() == nil {
							continue
						}
						return nil, res.Err
					}
					return decodeReplay(opts.Codec, idCmd, res.Val.([]byte))
				}
			}
		})
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// runOnce returns the encoded result, executing the command only when no
// live record exists for key.
func runOnce(ctx context.Context, store IdempotencyStore, opts IdempotencyOptions, key string, cmd IdempotentCommand, next commandFunc) ([]byte, error) {
	now := opts.Clock.Now().UTC()
	rec, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if found && (rec.ExpiresAt.IsZero() || now.Before(rec.ExpiresAt)) {
		if rec.Command != "" && rec.Command != cmd.Key() {
			return nil, ErrIdempotencyKeyReused
		}
		return rec.Payload, nil
	}
	result, err := next(ctx, cmd)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if result != nil {
		if payload, err = opts.Codec.Encode(result); err != nil {
			return nil, err
		}
	}
	record := IdempotencyRecord{Key: key, Command: cmd.Key(), Payload: payload, OccurredAt: now}
	if opts.TTL > 0 {
		record.ExpiresAt = now.Add(opts.TTL)
	}
	if err := store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("idempotency save: %w", err)
	}
	return payload, nil
}

// decodeReplay gives every caller its own copy of the result.
func decodeReplay(codec ResultCodec, cmd IdempotentCommand, payload []byte) (any, error) {
	if payload == nil {
		return nil, nil
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}

func scopedKey(cmd commands.Command, key string) string {
	if p, ok := cmd.(policies.Authenticated); ok && p.PrincipalOf().UserID != "" {
		return p.PrincipalOf().UserID + "/" + key
	}
	return key
}
