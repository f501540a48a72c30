package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/reconcile"
	"github.com/pcarvalho/wacrm/internal/timewin"
)

// maxQueryLimit caps the per-request message count regardless of what the
// client asks for.
const maxQueryLimit = 500

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	conversations, messages := s.deps.Store.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":         s.deps.Machine.Current(),
		"conversations": conversations,
		"messages":      messages,
		"mappings":      s.deps.Identity.Len(),
		"names":         s.deps.Names.Len(),
	})
}

type messageView struct {
	MsgID      string `json:"msg_id"`
	SenderName string `json:"sender_name,omitempty"`
	FromMe     bool   `json:"from_me"`
	Kind       string `json:"kind"`
	Body       string `json:"body"`
	Status     string `json:"status,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	sinceMs := timewin.ParseSince(r.URL.Query().Get("since"), time.Now())

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	records := s.deps.Store.Query(key, sinceMs, limit)
	views := make([]messageView, 0, len(records))
	for _, rec := range records {
		views = append(views, messageView{
			MsgID:      rec.MsgID,
			SenderName: rec.SenderName,
			FromMe:     rec.FromMe,
			Kind:       rec.Kind,
			Body:       rec.Body,
			Status:     rec.Status,
			Timestamp:  rec.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      s.deps.Identity.Resolve(key),
		"since_ms": sinceMs,
		"messages": views,
	})
}

func (s *Server) handleIdentityList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mappings": s.deps.Identity.Pairs(),
	})
}

func (s *Server) handleRegisterMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LID   string `json:"lid"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	registered := s.deps.Engine.RegisterManual(req.LID, req.Phone)
	writeJSON(w, http.StatusOK, map[string]bool{"registered": registered})
}

func (s *Server) handlePhoneShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LID   string `json:"lid"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.deps.Bus.Emit(bus.KindPhoneShare, reconcile.PhoneShare{LID: req.LID, Phone: req.Phone})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if s.deps.Lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "transport not connected")
		return
	}
	res := s.deps.Engine.Bootstrap(r.Context(), s.deps.Lookup)
	if res.Err != nil {
		writeError(w, http.StatusBadGateway, res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"registered": res.Registered})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	clientMsgID, err := s.deps.Queue.Enqueue(req.Key, req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Logger.Info("message queued",
		zap.String("key", req.Key), zap.String("client_msg_id", clientMsgID))
	writeJSON(w, http.StatusAccepted, map[string]string{"client_msg_id": clientMsgID})
}

func (s *Server) handleAutoReplyGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.AutoReply.Get())
}

func (s *Server) handleAutoReplyPut(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.AutoReply.Get()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.deps.AutoReply.Set(cfg)
	writeJSON(w, http.StatusOK, cfg)
}
