package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/letter-service/internal/config"
)

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions(config.RedisConfig{Addr: "cache:6379", Password: "pw", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = RedisOptions(config.RedisConfig{URL: "redis://:secret@sessions:6380/4", Addr: "ignored:1"})
	require.NoError(t, err)
	assert.Equal(t, "sessions:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 4, opts.DB)

	_, err = RedisOptions(config.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}

func TestRedis_PingWithoutClient(t *testing.T) {
	var r *Redis
	assert.Error(t, r.Ping(context.Background()))
	r.Close()
}
