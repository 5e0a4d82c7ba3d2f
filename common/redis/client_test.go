package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Gstman420/emergency-response-backend/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), &config.RedisConfig{Addr: mr.Addr(), PoolSize: 4}, time.Second)
	require.NoError(t, err)
	defer Close(client)

	assert.Equal(t, 4, client.Options().PoolSize)
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := Connect(context.Background(), &config.RedisConfig{Addr: addr}, 200*time.Millisecond)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), addr)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
