package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"leadline/internal/config"
	"leadline/internal/db"
	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/events"
	"leadline/internal/feed"
	"leadline/internal/migrate"
)

const testJWTSecret = "test-secret"

type stubGenerator struct {
	text string
	err  error
}

func (s *stubGenerator) Generate(ctx context.Context, description string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type testServer struct {
	URL    string
	Engine engine.Engine
	Gen    *stubGenerator
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("owner-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bus := events.NewBus()
	gen := &stubGenerator{text: "theme text"}
	e := engine.New(conn, cfg)
	e.Bus = bus
	e.Ideation = gen
	f := &feed.Feed{Repo: e.Repo, Subscriber: bus, OwnerID: cfg.Owner.ID}
	handler, err := New(Config{
		Engine:   e,
		Feed:     f,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Gen:    gen,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			bus.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func asOwner() map[string]string {
	return map[string]string{"X-Actor-Id": "owner-1"}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func ingestLead(t *testing.T, srv *testServer, body map[string]any) domain.Lead {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("ingest status %d: %s", res.StatusCode, string(data))
	}
	var created IngestLeadResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal ingest response: %v", err)
	}
	if !created.Success {
		t.Fatalf("ingest success=false: %s", string(data))
	}
	return created.Lead
}

func getLead(t *testing.T, srv *testServer, id string) domain.Lead {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/leads/"+id, nil, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get lead status %d: %s", res.StatusCode, string(data))
	}
	var l domain.Lead
	if err := json.Unmarshal(data, &l); err != nil {
		t.Fatalf("unmarshal lead: %v", err)
	}
	return l
}

func TestIntakeCreatesLead(t *testing.T) {
	srv := newTestServer(t)
	// Scenario A: webhook submission without credentials.
	lead := ingestLead(t, srv, map[string]any{"name": "Jane Doe", "notes": "Needs drywall bid"})
	if !strings.Contains(lead.ArtifactContent, "Jane Doe") {
		t.Errorf("artifact_content = %q", lead.ArtifactContent)
	}
	if lead.Description != "Needs drywall bid" {
		t.Errorf("description = %q", lead.Description)
	}
	if lead.Status != domain.StatusNeedsFollowUp {
		t.Errorf("status = %s", lead.Status)
	}
	if lead.AIIdeation != nil {
		t.Error("ai_ideation should be absent")
	}
}

func TestIntakeNeverRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t)
	lead := ingestLead(t, srv, map[string]any{})
	if lead.ArtifactContent == "" {
		t.Error("artifact_content should be defaulted")
	}
	if lead.Status != domain.StatusNeedsFollowUp {
		t.Errorf("status = %s", lead.Status)
	}
}

func TestStatusTransitionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	lead := ingestLead(t, srv, map[string]any{"name": "A"})

	// Scenario B.
	res, data := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/leads/"+lead.ID+"/status", map[string]any{"status": "in_review"}, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Lead
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.StatusInReview {
		t.Errorf("status = %s", updated.Status)
	}
	if updated.UpdatedAt <= updated.CreatedAt {
		t.Errorf("updated_at %s not after created_at %s", updated.UpdatedAt, updated.CreatedAt)
	}

	// Illegal jump is rejected with a structured error.
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/leads/"+lead.ID+"/status", map[string]any{"status": "needs_follow_up"}, asOwner())
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), "invalid_transition") {
		t.Errorf("missing error code: %s", string(data))
	}

	// Same jump with force succeeds.
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/leads/"+lead.ID+"/status", map[string]any{"status": "needs_follow_up", "force": true}, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forced transition status %d: %s", res.StatusCode, string(data))
	}
}

func TestIdeateAsOwner(t *testing.T) {
	srv := newTestServer(t)
	lead := ingestLead(t, srv, map[string]any{"name": "A", "notes": "X"})

	// Scenario C.
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/"+lead.ID+"/ideate", nil, asOwner())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ideate status %d: %s", res.StatusCode, string(data))
	}
	var out IdeateResponse
	if err := json.Unmarshal(data, &out); err != nil || !out.Success {
		t.Fatalf("ideate response: %v %s", err, string(data))
	}
	after := getLead(t, srv, lead.ID)
	if after.AIIdeation == nil || *after.AIIdeation != "theme text" {
		t.Errorf("ai_ideation = %v", after.AIIdeation)
	}
	if after.Status != domain.StatusInReview {
		t.Errorf("status = %s", after.Status)
	}
}

func TestIdeateUnauthorizedLeavesLeadUntouched(t *testing.T) {
	srv := newTestServer(t)
	lead := ingestLead(t, srv, map[string]any{"name": "A", "notes": "X"})
	before := getLead(t, srv, lead.ID)

	// Scenario D.
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/"+lead.ID+"/ideate", nil, map[string]string{"X-Actor-Id": "intruder"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	after := getLead(t, srv, lead.ID)
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	if !bytes.Equal(beforeJSON, afterJSON) {
		t.Errorf("lead changed:\n%s\n%s", beforeJSON, afterJSON)
	}
}

func TestIdeateBackendFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.Gen.err = fmt.Errorf("ideation backend status 500: boom")
	lead := ingestLead(t, srv, map[string]any{"name": "A"})
	before := getLead(t, srv, lead.ID)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/"+lead.ID+"/ideate", nil, asOwner())
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", res.StatusCode, string(data))
	}
	after := getLead(t, srv, lead.ID)
	if after.Status != before.Status || after.AIIdeation != nil {
		t.Errorf("lead mutated on backend failure: %+v", after)
	}
}

func TestReadsRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/leads", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t)
	ingestLead(t, srv, map[string]any{"name": "A"})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "owner-1"}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/leads", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var list LeadListResponse
	if err := json.Unmarshal(data, &list); err != nil || len(list.Leads) != 1 {
		t.Fatalf("list: %v %s", err, string(data))
	}

	bad, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/leads", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if bad.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", bad.StatusCode)
	}
}

func TestLeadFeedStreamsSnapshots(t *testing.T) {
	srv := newTestServer(t)
	ingestLead(t, srv, map[string]any{"name": "Seeded"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/leads/feed", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Actor-Id", "owner-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := srv.Client().Do(req.WithContext(ctx))
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("feed status %d", res.StatusCode)
	}

	snapshots := make(chan []domain.Lead, 4)
	go func() {
		scanner := bufio.NewScanner(res.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var s []domain.Lead
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &s); err == nil {
				snapshots <- s
			}
		}
	}()

	select {
	case s := <-snapshots:
		if len(s) != 1 || s[0].ArtifactContent != "Seeded" {
			t.Fatalf("initial snapshot: %+v", s)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for initial snapshot")
	}

	ingestLead(t, srv, map[string]any{"name": "Streamed"})
	deadline := time.After(4 * time.Second)
	for {
		select {
		case s := <-snapshots:
			if len(s) == 2 {
				if s[0].ArtifactContent != "Streamed" {
					t.Fatalf("newest lead not first: %+v", s)
				}
				return
			}
		case <-deadline:
			t.Fatal("never observed streamed lead in feed")
		}
	}
}
