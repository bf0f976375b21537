// Command agentflow runs the workflow execution engine as an HTTP
// service: POST a graph to plan and run it, and stream its events over
// WebSocket. GET on an execution's status answers 501 Not Implemented.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexusflow/agentflow/config"
	"github.com/nexusflow/agentflow/events"
	"github.com/nexusflow/agentflow/graph"
	"github.com/nexusflow/agentflow/graph/bridge"
	"github.com/nexusflow/agentflow/graph/emit"
	"github.com/nexusflow/agentflow/graph/provider"
	"github.com/nexusflow/agentflow/graph/provider/anthropic"
	"github.com/nexusflow/agentflow/graph/provider/google"
	"github.com/nexusflow/agentflow/graph/provider/openai"
	"github.com/nexusflow/agentflow/graph/store"
	"github.com/nexusflow/agentflow/memory"
	"github.com/nexusflow/agentflow/pricing"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	listen := flag.String("listen", "", "HTTP listen address (overrides agentflow.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.HTTPAddr = *listen
	}

	log.Printf("Starting agentflow")
	log.Printf("Config directory: %s", *configDir)
	log.Printf("HTTP address: %s", cfg.HTTPAddr)

	table := pricing.Default()
	if path := getEnv("AGENTFLOW_PRICING_FILE", ""); path != "" {
		if err := table.LoadFile(path); err != nil {
			log.Fatalf("Failed to load pricing file %s: %v", path, err)
		}
	}

	adapters := buildAdapters(cfg, table)

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()
	log.Printf("Store backend: %s", cfg.Store.Driver)

	publisher, redisClient := buildPublisher(cfg)
	if redisClient != nil {
		defer redisClient.Close()
		log.Printf("Event stream: redis at %s", cfg.Redis.Addr)
	} else {
		log.Printf("Event stream: in-process only (no redis configured)")
	}

	metrics := graph.NewMetrics(prometheus.DefaultRegisterer)

	opts := []graph.Option{
		graph.WithDefaultNodeTimeout(cfg.DefaultNodeTimeout),
		graph.WithDefaultRetryBaseDelay(cfg.RetryBaseDelay),
		graph.WithMetrics(metrics),
		graph.WithRecaller(memory.NullRecaller{}),
	}
	if cfg.Budget.MaxTokens > 0 {
		opts = append(opts, graph.WithTokenBudget(cfg.Budget.MaxTokens))
	}
	if cfg.Budget.MaxCost > 0 {
		opts = append(opts, graph.WithCostBudget(cfg.Budget.MaxCost))
	}

	executor := graph.NewExecutor(adapters, table, st, publisher, opts...)

	api := &server{executor: executor, redisClient: redisClient}

	mux := http.NewServeMux()
	mux.HandleFunc("/executions", api.handleSubmit)
	mux.HandleFunc("/executions/", api.handleGet)
	if redisClient != nil {
		wsServer := bridge.NewServer(
			func(ctx context.Context, executionID string) (<-chan events.Event, func() error) {
				return events.Subscribe(ctx, redisClient, executionID)
			},
			func(ctx context.Context, executionID string) (events.Event, bool) {
				return terminalExecutionEvent(ctx, st, executionID)
			},
		)
		mux.HandleFunc("/stream", wsServer.Handler)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// server holds the executor and exposes it over a minimal JSON API. A
// full request-validation and pagination layer is intentionally left
// out; this is a thin control surface, not a production admission API.
type server struct {
	executor    *graph.Executor
	redisClient *redis.Client
}

type submitRequest struct {
	WorkflowID string      `json:"workflow_id"`
	Graph      graph.Graph `json:"graph"`
	UserQuery  string      `json:"user_query,omitempty"`
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.WorkflowID == "" {
		req.WorkflowID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	exec, err := s.executor.Run(ctx, req.WorkflowID, req.Graph, req.UserQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(exec)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not implemented: execution lookup requires a store query endpoint", http.StatusNotImplemented)
}

// terminalExecutionEvent looks up executionID and, if it has already
// reached a terminal status, builds the execution_completed event a
// client connecting after the fact would otherwise never see.
func terminalExecutionEvent(ctx context.Context, st store.Store, executionID string) (events.Event, bool) {
	exec, err := st.GetExecution(ctx, executionID)
	if err != nil {
		return events.Event{}, false
	}
	if exec.Status != graph.ExecutionCompleted && exec.Status != graph.ExecutionFailed {
		return events.Event{}, false
	}

	var durationMs int64
	if exec.StartedAt != nil && exec.CompletedAt != nil {
		if started, err := time.Parse(time.RFC3339, *exec.StartedAt); err == nil {
			if completed, err := time.Parse(time.RFC3339, *exec.CompletedAt); err == nil {
				durationMs = completed.Sub(started).Milliseconds()
			}
		}
	}

	completed, failed, skipped := 0, 0, 0
	runs, err := st.ListAgentRuns(ctx, executionID)
	if err == nil {
		for _, r := range runs {
			switch r.Status {
			case graph.AgentRunCompleted:
				completed++
			case graph.AgentRunFailed:
				failed++
			case graph.AgentRunSkipped:
				skipped++
			}
		}
	}

	return events.ExecutionCompletedEvent(exec.ID, string(exec.Status), events.ExecutionTotals{
		TokensPrompt:     exec.TotalTokensPrompt,
		TokensCompletion: exec.TotalTokensCompletion,
		Cost:             exec.TotalCost,
		DurationMs:       durationMs,
		AgentsCompleted:  completed,
		AgentsFailed:     failed,
		AgentsSkipped:    skipped,
	}), true
}

func buildAdapters(cfg *config.Config, table *pricing.Table) map[string]provider.Adapter {
	adapters := map[string]provider.Adapter{}
	if key := cfg.ProviderAPIKey("openai"); key != "" {
		adapters["openai"] = openai.New(key, table)
	}
	if key := cfg.ProviderAPIKey("anthropic"); key != "" {
		adapters["anthropic"] = anthropic.New(key, table)
	}
	if key := cfg.ProviderAPIKey("google"); key != "" {
		adapters["google"] = google.New(key, table)
	}
	return adapters
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.SQLitePath)
	case "mysql":
		return store.NewMySQLStore(cfg.Store.DSN)
	default:
		return store.NewMemoryStore(), nil
	}
}

func buildPublisher(cfg *config.Config) (events.Publisher, *redis.Client) {
	fallback := events.NewLocalEmitterPublisher(emit.NewLogEmitter(os.Stdout, true))
	if cfg.Redis.Addr == "" {
		return fallback, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.RedisPassword(),
		DB:       cfg.Redis.DB,
	})
	return events.NewMultiPublisher(fallback, events.NewRedisPublisher(client)), client
}
