package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/poyrazK/sandboxAuth/internal/adapters/api"
	"github.com/poyrazK/sandboxAuth/internal/adapters/cache"
	"github.com/poyrazK/sandboxAuth/internal/adapters/repository"
	"github.com/poyrazK/sandboxAuth/internal/core/services"
)

// runScaleTest stands up throwaway Postgres and Redis containers, seeds a
// session pool, serves the API in-process, and measures introspection
// twice: cold (every hit goes to Postgres) and warm (Redis holds the
// sessions the cold run populated).
func runScaleTest(count int, concurrency int, totalSessions int) {
	ctx := context.Background()

	fmt.Println("Starting Scale-Test Infrastructure...")
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine", ExposedPorts: []string{"5432/tcp"},
			Env:        map[string]string{"POSTGRES_PASSWORD": "password", "POSTGRES_DB": "sandboxauth"},
			WaitingFor: wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		fmt.Printf("failed to start postgres: %v\n", err)
		return
	}
	defer pgContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "redis:7-alpine", ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		fmt.Printf("failed to start redis: %v\n", err)
		return
	}
	defer redisContainer.Terminate(ctx)

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")
	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	db, err := sql.Open("pgx", fmt.Sprintf("postgres://postgres:password@%s:%s/sandboxauth?sslmode=disable", pgHost, pgPort.Port()))
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		return
	}
	defer db.Close()

	schema, err := os.ReadFile("internal/adapters/repository/schema.sql")
	if err != nil {
		fmt.Printf("failed to read schema: %v\n", err)
		return
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		fmt.Printf("failed to apply schema: %v\n", err)
		return
	}

	if err := seedDatabase(ctx, db, totalSessions); err != nil {
		fmt.Printf("seeding failed: %v\n", err)
		return
	}

	repo := repository.NewPostgresRepository(db)
	sessions := cache.NewRedisSessionCache(fmt.Sprintf("%s:%s", redisHost, redisPort.Port()), "", 0)
	identity := services.NewIdentityService(repo, sessions)
	orgs := services.NewOrgService(repo)
	keys := services.NewAPIKeyService(repo)
	access := services.NewAccessService(repo, identity, keys, sessions)

	handler := api.NewAPIHandler(identity, orgs, keys, access, repo)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Printf("failed to listen: %v\n", err)
		return
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	target := "http://" + ln.Addr().String()
	time.Sleep(100 * time.Millisecond)

	fmt.Println("\n--- PHASE 1: COLD RUN (Database Driven) ---")
	coldRes := runBenchmark(target, count, concurrency, uint64(totalSessions), 1.1, 100)

	fmt.Println("\n--- PHASE 2: WARM RUN (Redis Driven) ---")
	warmRes := runBenchmark(target, count, concurrency, uint64(totalSessions), 1.1, 100)

	fmt.Println("\n==========================================================")
	fmt.Println("          SESSION CACHE PERFORMANCE REPORT                ")
	fmt.Println("==========================================================")
	fmt.Printf("%-15s | %-15s | %-15s\n", "Metric", "Cold", "Warm")
	fmt.Println("----------------------------------------------------------")
	fmt.Printf("%-15s | %-15s | %-15s\n", "Throughput", coldRes.Throughput, warmRes.Throughput)
	fmt.Printf("%-15s | %-15s | %-15s\n", "P50 Latency", coldRes.P50, warmRes.P50)
	fmt.Printf("%-15s | %-15s | %-15s\n", "P99 Latency", coldRes.P99, warmRes.P99)
	fmt.Printf("%-15s | %-15s | %-15s\n", "Reliability", coldRes.Success, warmRes.Success)
	fmt.Println("==========================================================")
}
