package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Containers are shared by every test in the package and left to
// testcontainers' reaper at process exit.
var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error

	pgOnce sync.Once
	pgDSN  string
	pgErr  error

	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error
)

func startContainer(image, port string, strategy wait.Strategy, env map[string]string) (c testcontainers.Container, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	// testcontainers panics when no Docker daemon can be found
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("starting %s panicked: %v", image, r)
		}
	}()

	opts := []testcontainers.ContainerCustomizer{
		testcontainers.WithExposedPorts(port),
		testcontainers.WithWaitStrategy(strategy),
	}
	if env != nil {
		opts = append(opts, testcontainers.WithEnv(env))
	}
	return testcontainers.Run(ctx, image, opts...)
}

func endpoint(c testcontainers.Container) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Endpoint(ctx, "")
}

func getRedisAddress(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container tests in short mode")
	}
	redisOnce.Do(func() {
		c, err := startContainer("redis:7", "6379/tcp", wait.ForAll(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		), nil)
		if err != nil {
			redisErr = err
			return
		}
		redisAddr, redisErr = endpoint(c)
	})
	if redisErr != nil {
		t.Skipf("skipping Redis tests: %v", redisErr)
	}
	return redisAddr
}

func getPostgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres container tests in short mode")
	}
	pgOnce.Do(func() {
		c, err := startContainer("postgres:16", "5432/tcp", wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			// the first "ready" line comes from the init-time server
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2*time.Minute), map[string]string{
			"POSTGRES_USER":     "autopost",
			"POSTGRES_PASSWORD": "autopost",
			"POSTGRES_DB":       "autopost_test",
		})
		if err != nil {
			pgErr = err
			return
		}
		ep, err := endpoint(c)
		if err != nil {
			pgErr = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://autopost:autopost@%s/autopost_test?sslmode=disable", ep)
	})
	if pgErr != nil {
		t.Skipf("skipping Postgres tests: %v", pgErr)
	}
	return pgDSN
}

func getMongoURI(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Mongo container tests in short mode")
	}
	mongoOnce.Do(func() {
		c, err := startContainer("mongo:7", "27017/tcp",
			wait.ForListeningPort("27017/tcp").WithStartupTimeout(2*time.Minute), nil)
		if err != nil {
			mongoErr = err
			return
		}
		ep, err := endpoint(c)
		if err != nil {
			mongoErr = err
			return
		}
		mongoURI = "mongodb://" + ep
	})
	if mongoErr != nil {
		t.Skipf("skipping Mongo tests: %v", mongoErr)
	}
	return mongoURI
}
