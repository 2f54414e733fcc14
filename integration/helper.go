package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"testing"
	"time"

	reposql "github.com/iyhunko/product-catalog/internal/repository/sql"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
)

// TestDB holds the test database connection and cleanup function
type TestDB struct {
	DB       *sql.DB
	Pool     *dockertest.Pool
	Resource *dockertest.Resource
}

func newPool(t *testing.T) *dockertest.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}

	// Set max wait time for Docker operations
	pool.MaxWait = 120 * time.Second
	return pool
}

func noRestart(config *docker.HostConfig) {
	config.AutoRemove = true
	config.RestartPolicy = docker.RestartPolicy{Name: "no"}
}

// SetupTestDB sets up a PostgreSQL container using dockertest and runs migrations
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool := newPool(t)

	// Pull and run PostgreSQL container
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_USER=testuser",
			"POSTGRES_DB=testdb",
			"listen_addresses='*'",
		},
	}, noRestart)
	if err != nil {
		t.Fatalf("Could not start resource: %s", err)
	}

	// Set container to expire after 2 minutes to avoid orphaned containers
	if err := resource.Expire(120); err != nil {
		t.Fatalf("Could not set expiration: %s", err)
	}

	hostAndPort := resource.GetHostPort("5432/tcp")
	databaseURL := fmt.Sprintf("postgres://testuser:secret@%s/testdb?sslmode=disable", hostAndPort)

	log.Println("Connecting to database on url: ", databaseURL)

	// Wait for database to be ready
	var db *sql.DB
	if err = pool.Retry(func() error {
		var err error
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return err
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}

	if err := reposql.RunMigrations(db); err != nil {
		t.Fatalf("Could not run migrations: %s", err)
	}

	return &TestDB{
		DB:       db,
		Pool:     pool,
		Resource: resource,
	}
}

// Cleanup closes the database connection and purges the Docker container
func (tdb *TestDB) Cleanup(t *testing.T) {
	t.Helper()

	if tdb.DB != nil {
		if err := tdb.DB.Close(); err != nil {
			t.Errorf("Could not close database: %s", err)
		}
	}

	if tdb.Pool != nil && tdb.Resource != nil {
		if err := tdb.Pool.Purge(tdb.Resource); err != nil {
			t.Errorf("Could not purge resource: %s", err)
		}
	}
}

// TruncateTables empties the products table and resets its id sequence
func (tdb *TestDB) TruncateTables(t *testing.T) {
	t.Helper()

	_, err := tdb.DB.ExecContext(context.Background(), "TRUNCATE TABLE products RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("Could not truncate table products: %s", err)
	}
}

// TestRedis holds a Redis client connected to a throwaway container
type TestRedis struct {
	Client   *redis.Client
	Pool     *dockertest.Pool
	Resource *dockertest.Resource
}

// SetupTestRedis starts a Redis container using dockertest
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	pool := newPool(t)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, noRestart)
	if err != nil {
		t.Fatalf("Could not start resource: %s", err)
	}

	if err := resource.Expire(120); err != nil {
		t.Fatalf("Could not set expiration: %s", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: resource.GetHostPort("6379/tcp")})
	if err = pool.Retry(func() error {
		return rdb.Ping(context.Background()).Err()
	}); err != nil {
		t.Fatalf("Could not connect to redis: %s", err)
	}

	return &TestRedis{
		Client:   rdb,
		Pool:     pool,
		Resource: resource,
	}
}

// Cleanup closes the client and purges the Docker container
func (tr *TestRedis) Cleanup(t *testing.T) {
	t.Helper()

	if tr.Client != nil {
		if err := tr.Client.Close(); err != nil {
			t.Errorf("Could not close redis client: %s", err)
		}
	}

	if tr.Pool != nil && tr.Resource != nil {
		if err := tr.Pool.Purge(tr.Resource); err != nil {
			t.Errorf("Could not purge resource: %s", err)
		}
	}
}
