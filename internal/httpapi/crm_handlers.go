package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	profile := s.deps.CRM.Profile(key)
	if profile == nil {
		writeError(w, http.StatusNotFound, "no CRM profile for key")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Text string `json:"text"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	note := s.deps.CRM.AddNote(key, req.Text, req.Name)
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": s.deps.CRM.Notes(chi.URLParam(r, "key")),
	})
}

func (s *Server) handleAddGlobalNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	note := s.deps.CRM.AddNote("", req.Text, "")
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleSearchNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]any{"notes": s.deps.CRM.Notes("")})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": s.deps.CRM.SearchNotes(q)})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if !s.deps.CRM.DeleteNote(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "unknown note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Tags []string `json:"tags"`
		Name string   `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Tags) == 0 {
		writeError(w, http.StatusBadRequest, "tags are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tags": s.deps.CRM.AddTags(key, req.Tags, req.Name),
	})
}

func (s *Server) handleRemoveTags(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Tags) == 0 {
		writeError(w, http.StatusBadRequest, "tags are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tags": s.deps.CRM.RemoveTags(key, req.Tags),
	})
}

func (s *Server) handleAllTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tags": s.deps.CRM.AllTags()})
}

func (s *Server) handleSetMetadata(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": s.deps.CRM.SetMetadata(key, req.Field, req.Value, req.Name),
	})
}

func (s *Server) handleContactAutoReply(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile, err := s.deps.CRM.SetAutoReply(key, req.Mode, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleAddReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text          string `json:"text"`
		DueAt         string `json:"due_at"`
		TargetKey     string `json:"target_key"`
		TargetMessage string `json:"target_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" || req.DueAt == "" {
		writeError(w, http.StatusBadRequest, "text and due_at are required")
		return
	}
	reminder := s.deps.CRM.AddReminder(req.Text, req.DueAt, req.TargetKey, req.TargetMessage)
	writeJSON(w, http.StatusCreated, reminder)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": s.deps.CRM.Reminders(r.URL.Query().Get("status")),
	})
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	reminder, err := s.deps.CRM.CompleteReminder(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (s *Server) handleCancelReminder(w http.ResponseWriter, r *http.Request) {
	reminder, err := s.deps.CRM.CancelReminder(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}
