//go:build integration

package router

// End-to-end tests against real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"cashregister/internal/config"
	"cashregister/internal/infra"
	"cashregister/internal/model"
	"cashregister/internal/repository"
	"cashregister/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcPostgres.WithDatabase("register_test"),
		tcPostgres.WithUsername("register"),
		tcPostgres.WithPassword("register"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(infra.DriverPostgres, pgURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	return newEnv(t, db)
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestE2E_RegisterDayAndRelay(t *testing.T) {
	e := startPostgres(t)
	rdb := startRedis(t)

	closed := runRegisterDay(t, e)
	assert.Equal(t, "shortage", closed.Reconciliation.Classification)
	assert.True(t, closed.Reconciliation.Difference.Equal(amount("-5")))

	const queue = "events:register:test"
	relay := worker.NewRelay(worker.RelayConfig{
		Outbox:    repository.NewOutboxRepository(e.db, e.guard),
		Publisher: infra.NewRedisPublisher(rdb, queue),
		RDB:       rdb,
		Queue:     queue,
	})
	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	// LPUSH + RPOP yields creation order.
	var types []string
	for {
		raw, err := rdb.RPop(context.Background(), queue).Result()
		if err == redis.Nil {
			break
		}
		require.NoError(t, err)
		var msg infra.EventMessage
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))
		types = append(types, msg.Type)
	}
	assert.Equal(t, []string{
		model.EventRegisterOpened,
		model.EventEntryRecorded,
		model.EventEntryRecorded,
		model.EventEntryRecorded,
		model.EventEntryCancelled,
		model.EventRegisterClosed,
	}, types)

	pending, err := repository.NewOutboxRepository(e.db, e.guard).CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestE2E_ConcurrentOpensPostgres(t *testing.T) {
	e := startPostgres(t)
	token := e.seedUser(t, model.RoleCashier, true)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := e.do(t, http.MethodPost, "/v1/register/open", map[string]any{"opening_balance": "10.00"}, token)
			if w.Code == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestE2E_DeadEventGoesToDLQ(t *testing.T) {
	e := startPostgres(t)
	rdb := startRedis(t)

	token := e.seedUser(t, model.RoleCashier, true)
	w := e.do(t, http.MethodPost, "/v1/register/open", map[string]any{"opening_balance": "0"}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	const queue = "events:register:dlq-test"
	relay := worker.NewRelay(worker.RelayConfig{
		Outbox:      repository.NewOutboxRepository(e.db, e.guard),
		Publisher:   failingPublisher{},
		RDB:         rdb,
		Queue:       queue,
		MaxAttempts: 1,
	})
	_, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	length, err := worker.DLQLength(ctx, rdb, queue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	withRedis := &testEnv{
		engine: New(&config.Config{Env: "test", JWTSecret: testSecret, EventsQueue: queue}, e.db, rdb, e.guard),
		db:     e.db,
		guard:  e.guard,
	}
	w = withRedis.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "connected", body["redis"])
	assert.Equal(t, float64(1), body["dlq_length"])
	assert.Equal(t, float64(0), body["outbox_pending"])
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, model.OutboxEvent) error {
	return assert.AnError
}

func (failingPublisher) Close() error { return nil }
