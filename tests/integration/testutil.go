//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fitrelay-platform/fitrelay/internal/api"
	"github.com/fitrelay-platform/fitrelay/internal/chat"
	"github.com/fitrelay-platform/fitrelay/internal/config"
	"github.com/fitrelay-platform/fitrelay/internal/history"
	"github.com/fitrelay-platform/fitrelay/internal/llm"
	"github.com/fitrelay-platform/fitrelay/internal/orchestrator"
	"github.com/fitrelay-platform/fitrelay/internal/tools"
)

// stubOpenAI replays canned chat-completion responses in order.
type stubOpenAI struct {
	mu        sync.Mutex
	responses []string
	requests  []map[string]any
	server    *httptest.Server
}

func newStubOpenAI() *stubOpenAI {
	s := &stubOpenAI{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		s.requests = append(s.requests, req)

		if len(s.responses) == 0 {
			http.Error(w, `{"error":{"message":"stub exhausted"}}`, http.StatusInternalServerError)
			return
		}
		resp := s.responses[0]
		s.responses = s.responses[1:]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(resp))
	}))
	return s
}

// Enqueue adds one completion response returning the given assistant text.
func (s *stubOpenAI) Enqueue(text string) {
	s.enqueueRaw(fmt.Sprintf(
		`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, text))
}

// EnqueueToolCall adds one completion response requesting a single tool.
func (s *stubOpenAI) EnqueueToolCall(id, name, args string) {
	s.enqueueRaw(fmt.Sprintf(
		`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":%q,"type":"function","function":{"name":%q,"arguments":%q}}]}}]}`,
		id, name, args))
}

func (s *stubOpenAI) enqueueRaw(resp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

func (s *stubOpenAI) Requests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.requests...)
}

// stubAutomation records every webhook hit and answers 200 with a fixed body.
type stubAutomation struct {
	mu     sync.Mutex
	hits   []automationHit
	server *httptest.Server
}

type automationHit struct {
	Path string
	Body string
}

func newStubAutomation() *stubAutomation {
	s := &stubAutomation{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.hits = append(s.hits, automationHit{Path: r.URL.Path, Body: string(body)})
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	return s
}

func (s *stubAutomation) Hits() []automationHit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]automationHit(nil), s.hits...)
}

type TestEnv struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Server     *httptest.Server
	OpenAI     *stubOpenAI
	Automation *stubAutomation
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "fitrelay_test",
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
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/fitrelay_test?sslmode=disable", pgHost, pgPort.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}
	m.Close()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("creating pool: %v", err)
	}
	t.Cleanup(pool.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	openaiStub := newStubOpenAI()
	t.Cleanup(openaiStub.server.Close)
	automationStub := newStubAutomation()
	t.Cleanup(automationStub.server.Close)

	completion := llm.NewOpenAIClient(config.LLMConfig{
		APIKey:    "test-key",
		BaseURL:   openaiStub.server.URL,
		Model:     "gpt-4o-mini",
		MaxTokens: 1024,
	})
	dispatcher := tools.NewDispatcher(tools.NewWebhookClient(config.AutomationConfig{
		WebhookBaseURL: automationStub.server.URL + "/webhook",
		APIKey:         "test-automation-key",
	}))
	historySvc := history.NewService(
		history.NewPostgresRepository(pool),
		history.NewCache(redisClient, history.HistoryLimit, time.Hour),
	)
	orch := orchestrator.New(historySvc, completion, dispatcher, nil)
	chatHandler := chat.NewHandler(orch)

	router := api.NewRouter(pool, nil, redisClient,
		api.RouterConfig{},
		api.HandlerSet{Chat: chatHandler.HandleTurn},
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestEnv{
		Pool:       pool,
		Redis:      redisClient,
		Server:     srv,
		OpenAI:     openaiStub,
		Automation: automationStub,
	}
}

// PostChat sends one turn to the chat endpoint and decodes the body.
func (env *TestEnv) PostChat(t *testing.T, payload string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(env.Server.URL+"/api/v1/chat", "application/json",
		bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("posting chat turn: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, body
}
