package server

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = repomanager.MemoryDSN
	c.HTTPAddr = "127.0.0.1:0"
	c.GRPCAddr = "127.0.0.1:0"
	c.S3Bucket = ""
	c.LogLevel = "error"
	return c
}

func TestNewApp_MemoryStore(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })

	assert.NotNil(t, app.authService)
	assert.NotNil(t, app.eventService)
	assert.Nil(t, app.redis)
	assert.NoError(t, app.repos.Ping(context.Background()))
}

func TestNewApp_WithPictureStorage(t *testing.T) {
	c := memoryConfig(t)
	c.S3Bucket = "pictures"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	app.Close(context.Background())
}

func TestNewApp_BadDSN(t *testing.T) {
	c := memoryConfig(t)
	c.DatabaseDSN = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"
	c.DBConnectAttempts = 1

	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("app exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestRun_ReportsListenFailure(t *testing.T) {
	c := memoryConfig(t)
	c.HTTPAddr = "256.0.0.1:bad"
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after listen failure")
	}
}
