package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/httpapi/middleware"
	"github.com/hamed0406/watchdog/internal/repo"
	"github.com/hamed0406/watchdog/internal/repo/memory"
)

func seedStore(t *testing.T) (*memory.Store, *domain.Incident) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	if err := store.Upsert(ctx, &domain.Target{
		Name:           "web",
		URL:            "https://web.example.com",
		Method:         "GET",
		ExpectedStatus: 200,
		Timeout:        5 * time.Second,
		Enabled:        true,
		Channels:       []domain.ChannelConfig{{Channel: domain.ChannelChat, EscalateAfter: 1}},
	}); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	for i, st := range []domain.CheckStatus{domain.StatusSuccess, domain.StatusFailure} {
		out := &domain.CheckOutcome{
			ID:         uuid.NewString(),
			TargetName: "web",
			Status:     st,
			HTTPStatus: 200,
			LatencyMS:  float64(100 + i),
			CheckedAt:  now.Add(time.Duration(i) * time.Second),
		}
		if err := store.Append(ctx, out); err != nil {
			t.Fatal(err)
		}
	}

	inc := &domain.Incident{
		ID:           uuid.NewString(),
		TargetName:   "web",
		Status:       domain.IncidentOpen,
		StartedAt:    now,
		FailureCount: 1,
		Alerted:      map[domain.Channel]bool{},
	}
	if err := store.Create(ctx, inc); err != nil {
		t.Fatal(err)
	}
	return store, inc
}

func newTestServer(store *memory.Store, keys middleware.Keys) http.Handler {
	return NewServer(zap.NewNop(), store, store, store, keys).Router()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	return rr
}

func TestHealthz(t *testing.T) {
	store, _ := seedStore(t)
	rr := get(t, newTestServer(store, middleware.Keys{}), "/healthz")
	if rr.Code != 200 || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}

func TestListTargets_DecoratedWithLastCheckAndIncident(t *testing.T) {
	store, inc := seedStore(t)
	rr := get(t, newTestServer(store, middleware.Keys{}), "/api/targets")
	if rr.Code != 200 {
		t.Fatalf("want 200 got %d", rr.Code)
	}
	var views []targetView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].Name != "web" {
		t.Fatalf("targets wrong: %+v", views)
	}
	if views[0].LastCheck == nil || views[0].LastCheck.Status != domain.StatusFailure {
		t.Fatalf("last check wrong: %+v", views[0].LastCheck)
	}
	if views[0].Incident == nil || views[0].Incident.ID != inc.ID {
		t.Fatalf("incident decoration wrong: %+v", views[0].Incident)
	}
}

func TestTargetStats(t *testing.T) {
	store, _ := seedStore(t)
	h := newTestServer(store, middleware.Keys{})

	rr := get(t, h, "/api/targets/web/stats?window=1h")
	if rr.Code != 200 {
		t.Fatalf("want 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Target string     `json:"target"`
		Stats  repo.Stats `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Stats.Total != 2 || body.Stats.Successes != 1 {
		t.Fatalf("stats wrong: %+v", body.Stats)
	}

	if rr := get(t, h, "/api/targets/nope/stats"); rr.Code != 404 {
		t.Fatalf("unknown target: want 404 got %d", rr.Code)
	}
	if rr := get(t, h, "/api/targets/web/stats?window=bogus"); rr.Code != 400 {
		t.Fatalf("bad window: want 400 got %d", rr.Code)
	}
}

func TestRecentChecks_LimitValidation(t *testing.T) {
	store, _ := seedStore(t)
	h := newTestServer(store, middleware.Keys{})

	rr := get(t, h, "/api/checks?limit=1")
	if rr.Code != 200 {
		t.Fatalf("want 200 got %d", rr.Code)
	}
	var outs []domain.CheckOutcome
	if err := json.Unmarshal(rr.Body.Bytes(), &outs); err != nil {
		t.Fatal(err)
	}
	if len(outs) != 1 || outs[0].Status != domain.StatusFailure {
		t.Fatalf("want newest outcome only: %+v", outs)
	}

	if rr := get(t, h, "/api/checks?limit=0"); rr.Code != 400 {
		t.Fatalf("limit=0: want 400 got %d", rr.Code)
	}
	if rr := get(t, h, "/api/checks?limit=9999"); rr.Code != 400 {
		t.Fatalf("limit too big: want 400 got %d", rr.Code)
	}
}

func TestOpenIncidents(t *testing.T) {
	store, inc := seedStore(t)
	rr := get(t, newTestServer(store, middleware.Keys{}), "/api/incidents")
	if rr.Code != 200 {
		t.Fatalf("want 200 got %d", rr.Code)
	}
	var incs []domain.Incident
	if err := json.Unmarshal(rr.Body.Bytes(), &incs); err != nil {
		t.Fatal(err)
	}
	if len(incs) != 1 || incs[0].ID != inc.ID {
		t.Fatalf("open incidents wrong: %+v", incs)
	}
}

func TestAcknowledge_RequiresAdminKey(t *testing.T) {
	store, inc := seedStore(t)
	keys := middleware.Keys{Public: []string{"pub"}, Admin: []string{"adm"}}
	h := newTestServer(store, keys)

	req := httptest.NewRequest("POST", "/api/incidents/"+inc.ID+"/ack", nil)
	req.Header.Set("X-API-Key", "pub")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 403 {
		t.Fatalf("public key: want 403 got %d", rr.Code)
	}

	req = httptest.NewRequest("POST", "/api/incidents/"+inc.ID+"/ack", nil)
	req.Header.Set("X-API-Key", "adm")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("admin key: want 200 got %d: %s", rr.Code, rr.Body.String())
	}

	got, err := store.OpenIncident(context.Background(), "web")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != domain.IncidentAcknowledged {
		t.Fatalf("incident should be acknowledged and still open: %+v", got)
	}

	// acknowledging twice conflicts
	req = httptest.NewRequest("POST", "/api/incidents/"+inc.ID+"/ack", nil)
	req.Header.Set("X-API-Key", "adm")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 409 {
		t.Fatalf("double ack: want 409 got %d", rr.Code)
	}
}

func TestPublicRoutesNeedAKeyWhenConfigured(t *testing.T) {
	store, _ := seedStore(t)
	h := newTestServer(store, middleware.Keys{Public: []string{"pub"}})

	if rr := get(t, h, "/api/targets"); rr.Code != 401 {
		t.Fatalf("no key: want 401 got %d", rr.Code)
	}
	req := httptest.NewRequest("GET", "/api/targets", nil)
	req.Header.Set("Authorization", "Bearer pub")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("with key: want 200 got %d", rr.Code)
	}
}
