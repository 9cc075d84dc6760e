package nvr

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/technoclass/campus-vms/internal/mediamtx"
)

// DeployTargetTTL bounds how long a remembered target stays valid.
// After that operators must re-enter it, which keeps stale hosts from
// being redeployed to by habit.
const DeployTargetTTL = 30 * 24 * time.Hour

// TargetCache remembers the last deploy target per scope so repeat
// deploys can be offered the previous destination. Only the target
// coordinates are stored, never the rendered config.
type TargetCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTargetCache(addr, password string) *TargetCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return &TargetCache{client: rdb, ttl: DeployTargetTTL}
}

// NewTargetCacheWithClient wires an existing client, used by tests.
func NewTargetCacheWithClient(client *redis.Client) *TargetCache {
	return &TargetCache{client: client, ttl: DeployTargetTTL}
}

func targetKey(scope string) string {
	return fmt.Sprintf("deploy_target:%s", scope)
}

// stripRestartCommands clears the command fields before caching: a
// remembered target pre-fills coordinates, it must not replay shell
// commands an operator typed a month ago.
func stripRestartCommands(req mediamtx.DeployRequest) mediamtx.DeployRequest {
	if req.SSH != nil {
		ssh := *req.SSH
		ssh.RestartCommand = ""
		req.SSH = &ssh
	}
	if req.Local != nil {
		local := *req.Local
		local.RestartCommand = ""
		req.Local = &local
	}
	return req
}

// Remember stores the target for a scope and bumps an attempt counter
// kept alongside it. Restart commands are never cached.
func (c *TargetCache) Remember(ctx context.Context, scope string, req mediamtx.DeployRequest) error {
	payload, err := json.Marshal(stripRestartCommands(req))
	if err != nil {
		return err
	}

	key := targetKey(scope)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key,
		"target", string(payload),
		"mode", string(req.Mode),
		"deployed_at", time.Now().Unix(),
	)
	pipe.HIncrBy(ctx, key, "deploys", 1)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Recall returns the remembered target for a scope, or nil when none
// is stored.
func (c *TargetCache) Recall(ctx context.Context, scope string) (*mediamtx.DeployRequest, error) {
	raw, err := c.client.HGet(ctx, targetKey(scope), "target").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var req mediamtx.DeployRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("decode cached deploy target: %w", err)
	}
	return &req, nil
}

// Forget drops the remembered target for a scope.
func (c *TargetCache) Forget(ctx context.Context, scope string) error {
	return c.client.Del(ctx, targetKey(scope)).Err()
}
