// Package redisstate implements core.StateStore on Redis.
//
// The active run lives in one hash with run_id, version and payload fields.
// Create, compare-and-swap and delete are Lua scripts, so each is atomic on
// the server.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/redis/go-redis/v9"
)

var createScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return 0
	end
	redis.call("hset", KEYS[1], "run_id", ARGV[1], "version", ARGV[2], "payload", ARGV[3])
	return 1
`)

var casScript = redis.NewScript(`
	if redis.call("hget", KEYS[1], "run_id") ~= ARGV[1] then
		return 0
	end
	if redis.call("hget", KEYS[1], "version") ~= ARGV[2] then
		return 0
	end
	redis.call("hset", KEYS[1], "version", ARGV[3], "payload", ARGV[4])
	return 1
`)

var deleteScript = redis.NewScript(`
	if redis.call("hget", KEYS[1], "run_id") == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// State is a core.StateStore backed by a Redis hash.
type State struct {
	client redis.UniversalClient
	key    string
}

// New returns a State storing the run under "<prefix>:import:active".
func New(client redis.UniversalClient, prefix string) *State {
	if prefix == "" {
		prefix = "postimport"
	}
	return &State{client: client, key: prefix + ":import:active"}
}

// Key returns the hash key holding the active run.
func (s *State) Key() string {
	return s.key
}

func (s *State) Create(ctx context.Context, st *core.ImportState) error {
	st.Version = 1
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode import state: %w", err)
	}

	created, err := createScript.Run(ctx, s.client, []string{s.key}, st.RunID, st.Version, payload).Int()
	if err != nil {
		return fmt.Errorf("create import state: %w", err)
	}
	if created == 0 {
		return core.ErrRunActive
	}
	return nil
}

func (s *State) Load(ctx context.Context) (*core.ImportState, error) {
	vals, err := s.client.HMGet(ctx, s.key, "version", "payload").Result()
	if err != nil {
		return nil, fmt.Errorf("load import state: %w", err)
	}
	version, okVersion := vals[0].(string)
	payload, okPayload := vals[1].(string)
	if !okVersion && !okPayload {
		return nil, core.ErrNoActiveRun
	}
	if !okVersion || !okPayload {
		return nil, fmt.Errorf("%w: incomplete hash %s", core.ErrStateCorruption, s.key)
	}

	var st core.ImportState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStateCorruption, err)
	}
	if _, err := fmt.Sscan(version, &st.Version); err != nil {
		return nil, fmt.Errorf("%w: bad version %q", core.ErrStateCorruption, version)
	}
	return &st, nil
}

func (s *State) CompareAndSwap(ctx context.Context, st *core.ImportState) error {
	next := st.Clone()
	next.Version = st.Version + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode import state: %w", err)
	}

	swapped, err := casScript.Run(ctx, s.client, []string{s.key},
		st.RunID, st.Version, next.Version, payload).Int()
	if err != nil {
		return fmt.Errorf("update import state: %w", err)
	}
	if swapped == 0 {
		return core.ErrStateConflict
	}
	st.Version = next.Version
	return nil
}

func (s *State) Delete(ctx context.Context, runID string) error {
	err := deleteScript.Run(ctx, s.client, []string{s.key}, runID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete import state: %w", err)
	}
	return nil
}

// Clear drops the run hash without reading it.
func (s *State) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear import state: %w", err)
	}
	return nil
}
