package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/persistence"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := engine.DefaultDiscreteConfig()
	cfg.Size = 100
	cfg.InitialInfected = 2
	d, err := engine.NewDiscrete(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewDiscrete: %v", err)
	}
	s := NewServer(engine.NewRunner(d), testKey)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStatusAndFrame(t *testing.T) {
	_, ts := newTestServer(t)

	var status map[string]any
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/status", "", ""), &status)
	if status["model"] != "discrete" || status["infected"] != float64(2) || status["total"] != float64(100) {
		t.Fatalf("status = %v", status)
	}

	var f engine.Frame
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/frame", "", ""), &f)
	if f.Day != 0 || len(f.Status) != 100 {
		t.Fatalf("frame day %d with %d statuses", f.Day, len(f.Status))
	}
}

func TestStep_RequiresAdmin(t *testing.T) {
	_, ts := newTestServer(t)

	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/step", "", `{"days":1}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/step", "wrong", `{"days":1}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/step", testKey, `{"days":0}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero days: status %d", resp.StatusCode)
	}

	var sum engine.Summary
	decode(t, do(t, http.MethodPost, ts.URL+"/api/v1/step", testKey, `{"days":3}`), &sum)
	if sum.Day != 3 || sum.Total() != 100 {
		t.Fatalf("summary after step = %+v", sum)
	}

	var hist []engine.Summary
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/history", "", ""), &hist)
	if len(hist) != 4 || hist[3] != sum {
		t.Fatalf("history = %+v", hist)
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t)
	s.AdminKey = ""
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/reset", "anything", ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestInfectAndReset(t *testing.T) {
	_, ts := newTestServer(t)

	var sum engine.Summary
	decode(t, do(t, http.MethodPost, ts.URL+"/api/v1/infect", testKey, `{"count":5}`), &sum)
	if sum.Infected != 7 {
		t.Fatalf("infected after seeding = %d", sum.Infected)
	}
	var hist []engine.Summary
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/history", "", ""), &hist)
	if len(hist) != 1 || hist[0] != sum {
		t.Fatalf("history after seeding = %+v, want [%+v]", hist, sum)
	}

	var same engine.Summary
	decode(t, do(t, http.MethodPost, ts.URL+"/api/v1/infect", testKey, `{"count":0}`), &same)
	if same != sum {
		t.Fatalf("count 0 changed the model: %+v -> %+v", sum, same)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/infect", testKey, `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty seeding: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/infect", testKey, `{"count":-1}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("negative seeding: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/infect", testKey, `{"count":1000}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("oversized seeding: status %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/infect", testKey, `{"count":1,"ids":[3]}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("ambiguous seeding: status %d", resp.StatusCode)
	}

	decode(t, do(t, http.MethodPost, ts.URL+"/api/v1/reset", testKey, ""), &sum)
	if sum.Infected != 0 || sum.Susceptible != 100 || sum.Day != 0 {
		t.Fatalf("summary after reset = %+v", sum)
	}
}

func TestSpeed(t *testing.T) {
	s, ts := newTestServer(t)
	var got map[string]float64
	decode(t, do(t, http.MethodPost, ts.URL+"/api/v1/speed", testKey, `{"speed":0}`), &got)
	if got["speed"] != 0 || s.Runner.CurrentSpeed() != 0 {
		t.Fatalf("speed = %v", got)
	}
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/speed", testKey, `{"speed":-1}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative speed: status %d", resp.StatusCode)
	}
}

func TestSnapshot_SavesToDB(t *testing.T) {
	s, ts := newTestServer(t)
	if resp := do(t, http.MethodPost, ts.URL+"/api/v1/snapshot", testKey, ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("no db: status %d", resp.StatusCode)
	}

	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	run, err := db.CreateRun("discrete", 1, 0, nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	s.DB, s.RunID = db, run.ID
	s.Runner.Advance(2)

	var got map[string]any
	decode(t, do(t, http.MethodPost, ts.URL+"/api/v1/snapshot", testKey, ""), &got)
	if got["day"] != float64(2) {
		t.Fatalf("snapshot response = %v", got)
	}
	snap, err := db.LoadSnapshot(run.ID, 2)
	if err != nil || len(snap.Individuals) != 100 {
		t.Fatalf("stored snapshot: %d individuals, %v", len(snap.Individuals), err)
	}
}

func TestStream_PushesDays(t *testing.T) {
	s, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var u Update
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if u.Summary.Day != 0 || len(u.Frame.Status) != 100 {
		t.Fatalf("first update = day %d", u.Summary.Day)
	}

	// The first update is written after subscribing, so later days are not lost.
	s.Runner.Advance(2)
	for want := 1; want <= 2; want++ {
		if err := conn.ReadJSON(&u); err != nil {
			t.Fatalf("update %d: %v", want, err)
		}
		if u.Summary.Day != want || u.Frame.Day != want {
			t.Fatalf("update day %d/%d, want %d", u.Summary.Day, u.Frame.Day, want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests refused")
	}
	if rl.Allow("a") {
		t.Fatalf("third request allowed")
	}
	if !rl.Allow("b") {
		t.Fatalf("other client refused")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("RetryAfter = %d", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("request after window refused")
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientAddr(r); got != "10.0.0.1" {
		t.Fatalf("clientAddr = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := clientAddr(r); got != "1.2.3.4" {
		t.Fatalf("clientAddr with XFF = %q", got)
	}
}
