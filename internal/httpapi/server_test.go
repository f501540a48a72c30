package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pcarvalho/wacrm/internal/autoreply"
	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/contacts"
	"github.com/pcarvalho/wacrm/internal/crm"
	"github.com/pcarvalho/wacrm/internal/identity"
	"github.com/pcarvalho/wacrm/internal/msgstore"
	"github.com/pcarvalho/wacrm/internal/outbox"
	"github.com/pcarvalho/wacrm/internal/reconcile"
	"github.com/pcarvalho/wacrm/internal/status"
)

const (
	phoneKey = "972500000001@s.whatsapp.net"
	lidKey   = "111111111@lid"
)

type env struct {
	server *Server
	store  *msgstore.Store
	ids    *identity.Map
	engine *reconcile.Engine
	queue  *outbox.Queue
	crm    *crm.Store
	bus    *bus.Bus
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := bus.New()
	ids := identity.NewMap(nil)
	store := msgstore.New(ids, nil)
	names := contacts.NewDirectory(nil)
	engine := reconcile.NewEngine(ids, store, names, b, nil)
	queue := outbox.NewQueue()
	crmStore := crm.NewStore(nil)

	e := &env{
		store:  store,
		ids:    ids,
		engine: engine,
		queue:  queue,
		crm:    crmStore,
		bus:    b,
	}
	e.server = NewServer("127.0.0.1:0", Deps{
		Machine:   status.NewMachine(b),
		Store:     store,
		Identity:  ids,
		Names:     names,
		Engine:    engine,
		Queue:     queue,
		CRM:       crmStore,
		AutoReply: autoreply.NewConfigStore(autoreply.Config{Enabled: true, PrivateOnly: true}),
		Bus:       b,
	})
	return e
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	e.store.Upsert(phoneKey, &msgstore.Record{MsgID: "m1", Body: "hi", Kind: "text", Timestamp: 1})

	rec := e.do(t, http.MethodGet, "/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		State    string `json:"state"`
		Messages int    `json:"messages"`
	}
	decode(t, rec, &resp)
	if resp.State != "BOOTING" || resp.Messages != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMessagesQuery(t *testing.T) {
	e := newEnv(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		e.store.Upsert(phoneKey, &msgstore.Record{
			MsgID: "m" + string(rune('0'+i)), Body: "msg", Kind: "text",
			Timestamp: now.Add(-time.Duration(i) * time.Hour).UnixMilli(),
		})
	}
	// One message way outside the window.
	e.store.Upsert(phoneKey, &msgstore.Record{
		MsgID: "old", Body: "stale", Kind: "text",
		Timestamp: now.Add(-90 * 24 * time.Hour).UnixMilli(),
	})

	rec := e.do(t, http.MethodGet, "/v1/chats/"+phoneKey+"/messages?since=7d&limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Key      string        `json:"key"`
		Messages []messageView `json:"messages"`
	}
	decode(t, rec, &resp)
	if resp.Key != phoneKey {
		t.Errorf("key = %q", resp.Key)
	}
	if len(resp.Messages) != 3 {
		t.Fatalf("messages = %d, want limit 3", len(resp.Messages))
	}
	for _, m := range resp.Messages {
		if m.MsgID == "old" {
			t.Error("stale message leaked past the window")
		}
	}
}

func TestMessagesBadLimit(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/v1/chats/"+phoneKey+"/messages?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIdentityRegisterAndList(t *testing.T) {
	e := newEnv(t)
	e.store.Upsert(lidKey, &msgstore.Record{MsgID: "m1", Body: "parked", Kind: "text", Timestamp: 1})

	rec := e.do(t, http.MethodPost, "/v1/identity/mappings",
		`{"lid":"`+lidKey+`","phone":"`+phoneKey+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Registered bool `json:"registered"`
	}
	decode(t, rec, &resp)
	if !resp.Registered {
		t.Fatal("mapping not registered")
	}
	// Registration migrates parked history.
	if e.store.Len(phoneKey) != 1 {
		t.Error("history not migrated after manual mapping")
	}

	list := e.do(t, http.MethodGet, "/v1/identity/", "")
	var listResp struct {
		Mappings map[string]string `json:"mappings"`
	}
	decode(t, list, &listResp)
	if listResp.Mappings[lidKey] != phoneKey {
		t.Errorf("mappings = %v", listResp.Mappings)
	}
}

func TestPhoneShareFlowsThroughBus(t *testing.T) {
	e := newEnv(t)
	e.engine.Start(context.Background())
	defer e.engine.Stop()

	rec := e.do(t, http.MethodPost, "/v1/identity/phone-shares",
		`{"lid":"`+lidKey+`","phone":"`+phoneKey+`"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	deadline := time.After(2 * time.Second)
	for e.ids.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("phone share never reached the engine")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBootstrapWithoutTransport(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/identity/bootstrap", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSendEnqueues(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/messages", `{"key":"`+phoneKey+`","text":"hello"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ClientMsgID string `json:"client_msg_id"`
	}
	decode(t, rec, &resp)
	if e.queue.Get(resp.ClientMsgID) == nil {
		t.Error("entry not in queue")
	}

	bad := e.do(t, http.MethodPost, "/v1/messages", `{"key":"","text":""}`)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("empty send status = %d, want 400", bad.Code)
	}
}

func TestAutoReplyConfigRoundTrip(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/v1/autoreply", "")
	var cfg autoreply.Config
	decode(t, rec, &cfg)
	if !cfg.Enabled || !cfg.PrivateOnly {
		t.Fatalf("initial config = %+v", cfg)
	}

	put := e.do(t, http.MethodPut, "/v1/autoreply",
		`{"enabled":false,"private_only":false,"allowed_group_keys":["123@g.us"]}`)
	if put.Code != http.StatusOK {
		t.Fatalf("put status = %d", put.Code)
	}

	rec = e.do(t, http.MethodGet, "/v1/autoreply", "")
	decode(t, rec, &cfg)
	if cfg.Enabled || len(cfg.AllowedGroupKeys) != 1 {
		t.Errorf("updated config = %+v", cfg)
	}
}

func TestCRMEndpoints(t *testing.T) {
	e := newEnv(t)
	base := "/v1/crm/contacts/" + phoneKey

	rec := e.do(t, http.MethodPost, base+"/notes", `{"text":"met at expo","name":"Alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add note status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, base+"/tags", `{"tags":["Lead","work"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add tags status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPut, base+"/autoreply", `{"mode":"off"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("autoreply status = %d", rec.Code)
	}
	if e.crm.AutoReplyOverride(phoneKey) != autoreply.OverrideOff {
		t.Error("override not applied")
	}
	rec = e.do(t, http.MethodPut, base+"/autoreply", `{"mode":"sometimes"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, base+"/", "")
	var profile crm.Contact
	decode(t, rec, &profile)
	if profile.Name != "Alice" || len(profile.Tags) != 2 {
		t.Errorf("profile = %+v", profile)
	}

	rec = e.do(t, http.MethodGet, "/v1/crm/contacts/unknown@s.whatsapp.net/", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown profile status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/v1/crm/reminders/", `{"text":"call","due_at":"2026-09-01T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reminder status = %d: %s", rec.Code, rec.Body.String())
	}
	var reminder crm.Reminder
	decode(t, rec, &reminder)

	rec = e.do(t, http.MethodPost, "/v1/crm/reminders/"+reminder.ID+"/complete", "")
	if rec.Code != http.StatusOK {
		t.Errorf("complete status = %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/v1/crm/reminders/missing/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing reminder status = %d", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}
