package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/homemade/hubsync/sync"
)

var testMapping = sync.Mapping{
	Properties: []string{"email", "firstname", "lastname"},
}

// fakePortal is a minimal HubSpot stand-in recording every CRM call.
type fakePortal struct {
	calls        int
	searchResult string
}

func (f *fakePortal) start(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		switch {
		case r.URL.Path == "/crm/v3/objects/contacts/search":
			w.Write([]byte(f.searchResult))
		case r.Method == http.MethodGet && r.URL.Path == "/crm/v3/objects/contacts":
			w.Write([]byte(`{"total":0,"results":[]}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/crm/v3/objects/contacts/"):
			w.Write([]byte(`{"id":"42","properties":{"email":"a@x.com","firstname":"Ada"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/crm/v3/objects/contacts":
			w.Write([]byte(`{"id":"900"}`))
		case r.Method == http.MethodPatch:
			w.Write([]byte(`{"id":"77"}`))
		default:
			t.Errorf("unexpected portal call: %s %s", r.Method, r.URL.Path)
		}
	}))
}

func newTestServer(t *testing.T, cfg sync.Config, source *fakePortal, dest *fakePortal) *Server {
	t.Helper()
	cfg.Mapping = testMapping
	sourceServer := source.start(t)
	t.Cleanup(sourceServer.Close)
	destServer := dest.start(t)
	t.Cleanup(destServer.Close)
	return New(cfg,
		WithClients(
			sync.NewHubSpotAPI("source-token", sync.APIWithEndpoint(sourceServer.URL)),
			sync.NewHubSpotAPI("dest-token", sync.APIWithEndpoint(destServer.URL)),
		),
		WithClock(func() time.Time {
			return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		}),
	)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, sync.Config{}, &fakePortal{}, &fakePortal{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d", rec.Code)
	}
	body := gjson.Parse(rec.Body.String())
	if body.Get("status").String() != "healthy" {
		t.Errorf("Expected healthy status but have: %s", rec.Body.String())
	}
	if body.Get("timestamp").String() != "2024-06-01T12:00:00Z" {
		t.Errorf("Expected fixed clock timestamp but have: %s", rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, sync.Config{SourceToken: "x"}, &fakePortal{}, &fakePortal{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d", rec.Code)
	}
	body := gjson.Parse(rec.Body.String())
	if body.Get("service").String() != "HubSpot Webhook Sync" {
		t.Errorf("Expected service name but have: %s", rec.Body.String())
	}
	if !body.Get("config.source_token_set").Bool() || body.Get("config.dest_token_set").Bool() {
		t.Errorf("Expected token flags to reflect config but have: %s", rec.Body.String())
	}
	if body.Get("config.form_filter").String() != "all forms" {
		t.Errorf("Expected empty filter reported as all forms but have: %s", rec.Body.String())
	}
}

func TestIndex_UnknownPathIsNotFound(t *testing.T) {
	srv := newTestServer(t, sync.Config{}, &fakePortal{}, &fakePortal{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 but have: %d", rec.Code)
	}
}

func TestWebhook_BatchCountsOnlyRecognizedEvents(t *testing.T) {
	dest := &fakePortal{searchResult: `{"total":0,"results":[]}`}
	srv := newTestServer(t, sync.Config{SkipSignatureVerification: true}, &fakePortal{}, dest)

	payload := `[
		{"subscriptionType":"contact.creation","objectId":42},
		{"subscriptionType":"deal.creation","objectId":7}
	]`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/hubspot", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d %s", rec.Code, rec.Body.String())
	}
	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Received != 2 || resp.Processed != 1 {
		t.Errorf("Expected received 2 processed 1 but have: %+v", resp)
	}
	if len(resp.Results) != 1 || resp.Results[0].Status != sync.StatusCreated {
		t.Errorf("Expected one created outcome but have: %+v", resp.Results)
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	srv := newTestServer(t, sync.Config{SkipSignatureVerification: true}, &fakePortal{}, &fakePortal{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/hubspot", strings.NewReader(`{not json`)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 but have: %d", rec.Code)
	}
}

func TestWebhook_RejectsInvalidSignature(t *testing.T) {
	source := &fakePortal{}
	dest := &fakePortal{}
	srv := newTestServer(t, sync.Config{ClientSecret: "secret"}, source, dest)

	payload := `[{"subscriptionType":"contact.creation","objectId":42}]`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/hubspot", strings.NewReader(payload))
	req.Header.Set(sync.SignatureHeaderV3, "deadbeef")
	req.Header.Set(sync.TimestampHeader, "1700000000000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 but have: %d %s", rec.Code, rec.Body.String())
	}
	if source.calls != 0 || dest.calls != 0 {
		t.Errorf("Expected no portal calls after rejection but have: %d source, %d dest", source.calls, dest.calls)
	}
}

func TestWebhook_AcceptsValidSignature(t *testing.T) {
	dest := &fakePortal{searchResult: `{"total":0,"results":[]}`}
	srv := newTestServer(t, sync.Config{ClientSecret: "secret"}, &fakePortal{}, dest)

	payload := `[{"subscriptionType":"contact.creation","objectId":42}]`
	timestamp := "1700000000000"
	req := httptest.NewRequest(http.MethodPost, "http://example.com/webhooks/hubspot", strings.NewReader(payload))
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(http.MethodPost + "http://example.com/webhooks/hubspot" + payload + timestamp))
	req.Header.Set(sync.SignatureHeaderV3, hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set(sync.TimestampHeader, timestamp)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhook_FormFilter(t *testing.T) {
	dest := &fakePortal{searchResult: `{"total":0,"results":[]}`}
	srv := newTestServer(t, sync.Config{
		SkipSignatureVerification: true,
		FormFilter:                []string{"allowed-form"},
	}, &fakePortal{}, dest)

	payload := `[
		{"subscriptionType":"form.submitted","objectId":1,"formId":"allowed-form"},
		{"subscriptionType":"form.submitted","objectId":2,"formId":"other-form"}
	]`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/hubspot", strings.NewReader(payload)))

	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Received != 2 || resp.Processed != 2 {
		t.Fatalf("Expected both events in response but have: %+v", resp)
	}
	if resp.Results[0].Status != sync.StatusCreated {
		t.Errorf("Expected allowed form to sync but have: %+v", resp.Results[0])
	}
	if resp.Results[1].Status != sync.StatusSkipped || !strings.Contains(resp.Results[1].Message, "other-form") {
		t.Errorf("Expected filtered form to be skipped but have: %+v", resp.Results[1])
	}
}

func TestTestSync(t *testing.T) {
	dest := &fakePortal{searchResult: `{"total":1,"results":[{"id":"77","properties":{"email":"a@x.com"}}]}`}
	srv := newTestServer(t, sync.Config{}, &fakePortal{}, dest)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/sync/42", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d %s", rec.Code, rec.Body.String())
	}
	var outcome sync.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.Status != sync.StatusUpdated || outcome.EventType != "manual_test" || outcome.ContactID != "42" {
		t.Errorf("Expected manual_test update but have: %+v", outcome)
	}
}

func TestTestSync_WithoutTokens(t *testing.T) {
	srv := New(sync.Config{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/sync/42", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500 but have: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Tokens not configured") {
		t.Errorf("Expected token error but have: %s", rec.Body.String())
	}
}

func TestTestConnection_IndependentProbes(t *testing.T) {
	source := &fakePortal{}
	sourceServer := source.start(t)
	t.Cleanup(sourceServer.Close)

	srv := New(sync.Config{}, WithClients(
		sync.NewHubSpotAPI("source-token", sync.APIWithEndpoint(sourceServer.URL)),
		nil,
	))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/connection", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 but have: %d", rec.Code)
	}
	body := gjson.Parse(rec.Body.String())
	if body.Get("source.status").String() != "connected" {
		t.Errorf("Expected source connected but have: %s", rec.Body.String())
	}
	if body.Get("destination.status").String() != "error" || body.Get("destination.message").String() != "token not configured" {
		t.Errorf("Expected destination error but have: %s", rec.Body.String())
	}
}
