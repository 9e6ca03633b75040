//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/usagegate/usagegate/internal/account"
	"github.com/usagegate/usagegate/internal/api"
	"github.com/usagegate/usagegate/internal/auth"
	"github.com/usagegate/usagegate/internal/ledger"
	"github.com/usagegate/usagegate/internal/plan"
	"github.com/usagegate/usagegate/internal/quota"
	"github.com/usagegate/usagegate/internal/ratelimit"
	"github.com/usagegate/usagegate/internal/usagelog"
)

const storageTimeout = 5 * time.Second

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Tokens      *auth.TokenManager
	LedgerSvc   *ledger.Service
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "usagegate_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/usagegate_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	migrationsPath := getMigrationsPath()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Usage log writes straight to storage; no NATS in these tests.
	usageRepo := usagelog.NewRepository(pool)
	recorder := usagelog.NewDirectLogger(usageRepo)

	registry := plan.NewStaticRegistry()
	planStore := plan.NewStore(pool)
	planHandler := plan.NewHandler(planStore, registry)

	rateSvc := ratelimit.NewService(ratelimit.NewRepository(pool), planStore, registry, recorder, storageTimeout)
	rateHandler := ratelimit.NewHandler(rateSvc)

	quotaSvc := quota.NewService(quota.NewRepository(pool), planStore, registry, recorder, storageTimeout)
	quotaHandler := quota.NewHandler(quotaSvc)

	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), recorder, storageTimeout)
	ledgerHandler := ledger.NewHandler(ledgerSvc)

	accountSvc := account.NewService(account.NewRepository(pool), recorder, storageTimeout)
	accountHandler := account.NewHandler(accountSvc)

	usageHandler := usagelog.NewHandler(usageRepo)

	tokenMgr := auth.NewTokenManager("test-service-secret-32-chars-long!", "usagegate-test", "usagegate")

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		RateLimitCheck:  rateHandler.Check,
		RateLimitStatus: rateHandler.Status,

		QuotaCheck:   quotaHandler.Check,
		QuotaConsume: quotaHandler.Consume,

		ConsumeCredits: ledgerHandler.Consume,
		GrantCredits:   ledgerHandler.Grant,
		CreditBalance:  ledgerHandler.Balance,
		RefundCredits:  ledgerHandler.Refund,

		ManageAccount: accountHandler.Manage,
		GetAccount:    accountHandler.Get,

		AssignPlan: planHandler.Assign,
		GetPlan:    planHandler.Get,

		ListUsageLog: usageHandler.List,

		AuthMiddleware: auth.Middleware(tokenMgr),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Tokens:      tokenMgr,
		LedgerSvc:   ledgerSvc,
	}

	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func ServiceToken(t *testing.T, env *TestEnv) string {
	t.Helper()
	token, err := env.Tokens.Issue("integration-tests", time.Hour)
	if err != nil {
		t.Fatalf("issuing service token: %v", err)
	}
	return token
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
