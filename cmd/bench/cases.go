// README: Bench cases: environment, pickup lifecycle over HTTP, conflicting writes, create throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"

	userToken     = "bench-user"
	operatorToken = "bench-operator|operator"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	agent string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		agent: cfg.AgentID,
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingPostgres},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.do(ctx, http.MethodGet, "/health", "", nil, nil)
			return expect(status, latency, err, http.StatusOK)
		}},
		{Name: "API: agent available", Run: pickAgent},
		{Name: "Pickup: create (valid)", Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.do(ctx, http.MethodPost, "/api/pickups", userToken, createPayload(), nil)
			return expect(status, latency, err, http.StatusCreated)
		}},
		{Name: "Pickup: create (missing fields -> 400)", Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.do(ctx, http.MethodPost, "/api/pickups", userToken, map[string]any{}, nil)
			return expect(status, latency, err, http.StatusBadRequest)
		}},
		{Name: "Pickup: unauthenticated -> 401", Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.do(ctx, http.MethodGet, "/api/pickups/my", "", nil, nil)
			return expect(status, latency, err, http.StatusUnauthorized)
		}},
		{Name: "Pickup: assign, complete, complete again -> 409", Run: fullFlow},
		{Name: "Pickup: cancel after assign -> 409", Run: cancelAfterAssign},
		{Name: "Concurrency: multi assign same pickup", Run: func(ctx context.Context, r *Runner) Result {
			return r.race(ctx, "assign", func(id string) (string, any) {
				return "/api/pickups/" + id + "/assign", assignPayload(r.agent)
			})
		}},
		{Name: "Concurrency: multi complete same pickup", Run: func(ctx context.Context, r *Runner) Result {
			return r.race(ctx, "complete", func(id string) (string, any) {
				return "/api/pickups/" + id + "/complete", nil
			})
		}},
		{Name: "Perf: create throughput", Run: perfCreate},
	}
}

func pingPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	tables, err := migrationTables(r.cfg.MigrationsDir)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", t).Scan(&exists); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func pickAgent(ctx context.Context, r *Runner) Result {
	if r.agent != "" {
		return Result{Status: statusPass, Note: "agent=" + r.agent}
	}
	var resp struct {
		Agents []struct {
			ID string `json:"id"`
		} `json:"agents"`
	}
	status, latency, err := r.do(ctx, http.MethodGet, "/api/delivery-agents", operatorToken, nil, &resp)
	if res := expect(status, latency, err, http.StatusOK); res.Status != statusPass {
		return res
	}
	if len(resp.Agents) == 0 {
		return Result{Status: statusFail, Note: "no active agents; set BINWISE_AGENT_SEED"}
	}
	r.agent = resp.Agents[0].ID
	return Result{Status: statusPass, Latency: latency, Note: "agent=" + r.agent}
}

func fullFlow(ctx context.Context, r *Runner) Result {
	if r.agent == "" {
		return Result{Status: statusSkip, Note: "no agent"}
	}
	start := time.Now()
	id, err := r.createPickup(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	steps := []struct {
		path string
		body any
		want int
	}{
		{"/api/pickups/" + id + "/assign", assignPayload(r.agent), http.StatusOK},
		{"/api/pickups/" + id + "/complete", nil, http.StatusOK},
		{"/api/pickups/" + id + "/complete", nil, http.StatusConflict},
	}
	for _, s := range steps {
		status, _, err := r.do(ctx, http.MethodPut, s.path, operatorToken, s.body, nil)
		if err != nil || status != s.want {
			return Result{Status: statusFail, Note: fmt.Sprintf("PUT %s: status=%d want=%d err=%v", s.path, status, s.want, err)}
		}
	}
	return Result{Status: statusPass, Latency: time.Since(start)}
}

func cancelAfterAssign(ctx context.Context, r *Runner) Result {
	if r.agent == "" {
		return Result{Status: statusSkip, Note: "no agent"}
	}
	id, err := r.createPickup(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status, _, err := r.do(ctx, http.MethodPut, "/api/pickups/"+id+"/assign", operatorToken, assignPayload(r.agent), nil); err != nil || status != http.StatusOK {
		return Result{Status: statusFail, Note: fmt.Sprintf("assign status=%d err=%v", status, err)}
	}
	status, latency, err := r.do(ctx, http.MethodDelete, "/api/pickups/"+id, userToken, nil, nil)
	return expect(status, latency, err, http.StatusConflict)
}

// race fires Concurrency identical operator writes at one pickup; exactly one may succeed.
func (r *Runner) race(ctx context.Context, op string, target func(id string) (string, any)) Result {
	if r.agent == "" {
		return Result{Status: statusSkip, Note: "no agent"}
	}
	id, err := r.createPickup(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if op == "complete" {
		if status, _, err := r.do(ctx, http.MethodPut, "/api/pickups/"+id+"/assign", operatorToken, assignPayload(r.agent), nil); err != nil || status != http.StatusOK {
			return Result{Status: statusFail, Note: fmt.Sprintf("assign status=%d err=%v", status, err)}
		}
	}

	path, body := target(id)
	var ok, conflict, other atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPut, path, operatorToken, body, nil)
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusOK:
				ok.Add(1)
			case status == http.StatusConflict:
				conflict.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%d", ok.Load(), conflict.Load(), other.Load())
	if ok.Load() != 1 || other.Load() != 0 {
		return Result{Status: statusFail, Latency: time.Since(start), Note: note}
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: note}
}

func perfCreate(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, http.MethodPost, "/api/pickups", userToken, createPayload(), nil)
				if err != nil || status != http.StatusCreated {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func (r *Runner) createPickup(ctx context.Context) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	status, _, err := r.do(ctx, http.MethodPost, "/api/pickups", userToken, createPayload(), &created)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated || created.ID == "" {
		return "", fmt.Errorf("create pickup: status=%d", status)
	}
	return created.ID, nil
}

// do sends an authenticated JSON request and decodes a 2xx body into out when non-nil.
func (r *Runner) do(ctx context.Context, method, path, token string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func expect(status int, latency time.Duration, err error, want int) Result {
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
}

func createPayload() map[string]any {
	return map[string]any{
		"items":         []map[string]any{{"materialType": "plastic", "quantity": 2}, {"materialType": "paper", "quantity": 1}},
		"totalWeightKg": 4,
		"address":       "Bench Street 1",
		"scheduledAt":   time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"timeSlot":      "4PM-5PM",
	}
}

func assignPayload(agentID string) map[string]any {
	return map[string]any{
		"deliveryAgentId": agentID,
		"pickupTime":      time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
	}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func migrationTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
