package nvr

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technoclass/campus-vms/internal/mediamtx"
)

func newTestTargetCache(t *testing.T) *TargetCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewTargetCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestTargetCacheRememberRecall(t *testing.T) {
	cache := newTestTargetCache(t)
	ctx := context.Background()

	req := mediamtx.DeployRequest{
		Mode: mediamtx.ModeSSH,
		SSH: &mediamtx.SSHTarget{
			Host:       "media-host.school.lan",
			Port:       2222,
			User:       "mediamtx",
			RemotePath: "/etc/mediamtx/mediamtx.yml",
		},
	}
	require.NoError(t, cache.Remember(ctx, "nvr:abc", req))

	got, err := cache.Recall(ctx, "nvr:abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, mediamtx.ModeSSH, got.Mode)
	require.NotNil(t, got.SSH)
	assert.Equal(t, "media-host.school.lan", got.SSH.Host)
	assert.Equal(t, 2222, got.SSH.Port)
}

func TestTargetCacheNeverStoresRestartCommands(t *testing.T) {
	cache := newTestTargetCache(t)
	ctx := context.Background()

	req := mediamtx.DeployRequest{
		Mode: mediamtx.ModeSSH,
		SSH: &mediamtx.SSHTarget{
			Host:           "media-host.school.lan",
			User:           "mediamtx",
			RemotePath:     "/etc/mediamtx/mediamtx.yml",
			RestartCommand: "systemctl restart mediamtx",
		},
	}
	require.NoError(t, cache.Remember(ctx, "nvr:abc", req))

	got, err := cache.Recall(ctx, "nvr:abc")
	require.NoError(t, err)
	require.NotNil(t, got.SSH)
	assert.Empty(t, got.SSH.RestartCommand)
	// The caller's request stays intact.
	assert.Equal(t, "systemctl restart mediamtx", req.SSH.RestartCommand)

	local := mediamtx.DeployRequest{
		Mode:  mediamtx.ModeLocal,
		Local: &mediamtx.LocalTarget{Path: "/etc/mediamtx.yml", RestartCommand: "systemctl restart mediamtx"},
	}
	require.NoError(t, cache.Remember(ctx, "school:s1", local))

	got, err = cache.Recall(ctx, "school:s1")
	require.NoError(t, err)
	require.NotNil(t, got.Local)
	assert.Empty(t, got.Local.RestartCommand)
}

func TestTargetCacheRecallMissing(t *testing.T) {
	cache := newTestTargetCache(t)

	got, err := cache.Recall(context.Background(), "school:missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTargetCacheForget(t *testing.T) {
	cache := newTestTargetCache(t)
	ctx := context.Background()

	req := mediamtx.DeployRequest{
		Mode:  mediamtx.ModeLocal,
		Local: &mediamtx.LocalTarget{Path: "/etc/mediamtx.yml"},
	}
	require.NoError(t, cache.Remember(ctx, "school:s1", req))
	require.NoError(t, cache.Forget(ctx, "school:s1"))

	got, err := cache.Recall(ctx, "school:s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTargetCacheSeparateScopes(t *testing.T) {
	cache := newTestTargetCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Remember(ctx, "nvr:a", mediamtx.DeployRequest{
		Mode:  mediamtx.ModeLocal,
		Local: &mediamtx.LocalTarget{Path: "/etc/a.yml"},
	}))
	require.NoError(t, cache.Remember(ctx, "nvr:b", mediamtx.DeployRequest{
		Mode:   mediamtx.ModeDocker,
		Docker: &mediamtx.DockerTarget{Container: "mediamtx", ConfigPath: "/mediamtx.yml"},
	}))

	a, err := cache.Recall(ctx, "nvr:a")
	require.NoError(t, err)
	assert.Equal(t, mediamtx.ModeLocal, a.Mode)

	b, err := cache.Recall(ctx, "nvr:b")
	require.NoError(t, err)
	assert.Equal(t, mediamtx.ModeDocker, b.Mode)
}
