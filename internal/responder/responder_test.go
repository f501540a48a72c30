package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateViaService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Key == "" || req.Instruction == "" {
			t.Errorf("incomplete request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{Reply: "service reply"})
	}))
	defer srv.Close()

	c, err := New(Options{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := c.Generate(context.Background(), "123@s.whatsapp.net", "say hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "service reply" {
		t.Errorf("reply = %q", reply)
	}
}

func TestGenerateServiceErrorNoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Options{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Generate(context.Background(), "k", "i"); err == nil {
		t.Error("expected error when service fails and no fallback is configured")
	}
}

func TestGenerateEmptyReplyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer srv.Close()

	c, err := New(Options{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Generate(context.Background(), "k", "i"); err == nil {
		t.Error("empty reply must be an error")
	}
}

func TestNewRequiresSomePath(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("no endpoint and no key must be rejected")
	}
}
