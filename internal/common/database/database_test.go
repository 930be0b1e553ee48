package database

import (
	"context"
	"testing"
	"time"

	"safety-rating/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresClient_BeginSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	client := &PostgresClient{DB: db}
	tx, err := client.BeginSnapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_CloseNil(t *testing.T) {
	client := &PostgresClient{}
	assert.NoError(t, client.Close())
}

func TestRedisClient_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.RedisConfig
		poolSize    int
		minIdle     int
		dialTimeout time.Duration
		readTimeout time.Duration
	}{
		{
			name:        "configured",
			cfg:         config.RedisConfig{Address: "cache:6379", DB: 2, PoolSize: 40, MinIdleConns: 8, DialTimeout: 1500, ReadTimeout: 250, WriteTimeout: 250},
			poolSize:    40,
			minIdle:     8,
			dialTimeout: 1500 * time.Millisecond,
			readTimeout: 250 * time.Millisecond,
		},
		{
			name:        "zero values use defaults",
			cfg:         config.RedisConfig{Address: "cache:6379"},
			poolSize:    10,
			minIdle:     0,
			dialTimeout: 5 * time.Second,
			readTimeout: 3 * time.Second,
		},
		{
			name:        "idle connections capped by pool",
			cfg:         config.RedisConfig{Address: "cache:6379", PoolSize: 4, MinIdleConns: 9},
			poolSize:    4,
			minIdle:     0,
			dialTimeout: 5 * time.Second,
			readTimeout: 3 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := redisOptions(tt.cfg)
			assert.Equal(t, tt.cfg.Address, opts.Addr)
			assert.Equal(t, tt.cfg.DB, opts.DB)
			assert.Equal(t, tt.poolSize, opts.PoolSize)
			assert.Equal(t, tt.minIdle, opts.MinIdleConns)
			assert.Equal(t, tt.dialTimeout, opts.DialTimeout)
			assert.Equal(t, tt.readTimeout, opts.ReadTimeout)
		})
	}
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}
