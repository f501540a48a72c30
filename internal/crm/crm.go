// Package crm holds the personal-CRM layer: notes, tags, reminders,
// per-contact metadata, and the per-contact auto-reply override.
package crm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pcarvalho/wacrm/internal/autoreply"
	"go.uber.org/zap"
)

const SnapshotVersion = 1

// Note is one free-text annotation, either global or attached to a contact.
type Note struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Reminder statuses.
const (
	ReminderPending   = "pending"
	ReminderDone      = "done"
	ReminderCancelled = "cancelled"
)

// Reminder is a scheduled follow-up, optionally bound to a conversation key
// with a message to send when due.
type Reminder struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	DueAt         string `json:"due_at"`
	TargetKey     string `json:"target_key,omitempty"`
	TargetMessage string `json:"target_message,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// Contact is the CRM profile for one conversation key.
type Contact struct {
	Key             string            `json:"key"`
	Name            string            `json:"name,omitempty"`
	Tags            []string          `json:"tags"`
	Notes           []Note            `json:"notes"`
	Metadata        map[string]string `json:"metadata"`
	LastInteraction string            `json:"last_interaction,omitempty"`
	FollowUpDate    string            `json:"follow_up_date,omitempty"`
	AutoReply       string            `json:"auto_reply,omitempty"` // "on", "off", "" = global
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

// TagCount pairs a tag with how many contacts carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// NoteHit is one search result; Key is empty for global notes.
type NoteHit struct {
	Key  string `json:"key,omitempty"`
	Note Note   `json:"note"`
}

// Store is the in-memory CRM dataset. All methods are safe for concurrent
// use; persistence happens through Snapshot/Restore.
type Store struct {
	mu          sync.RWMutex
	contacts    map[string]*Contact
	reminders   []*Reminder
	globalNotes []Note
	logger      *zap.Logger
	now         func() time.Time
}

// NewStore builds an empty store. Logger may be nil.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		contacts: make(map[string]*Contact),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// ensure returns the contact for key, creating it on first touch. Caller
// holds the write lock.
func (s *Store) ensure(key, name string) *Contact {
	c, ok := s.contacts[key]
	if !ok {
		ts := s.stamp()
		c = &Contact{
			Key:       key,
			Tags:      []string{},
			Notes:     []Note{},
			Metadata:  make(map[string]string),
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		s.contacts[key] = c
	}
	if name != "" && c.Name == "" {
		c.Name = name
	}
	return c
}

// AddNote attaches a note to a contact, or to the global list when key is
// empty.
func (s *Store) AddNote(key, text, contactName string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.stamp()
	note := Note{ID: uuid.NewString(), Text: text, CreatedAt: ts, UpdatedAt: ts}
	if key == "" {
		s.globalNotes = append(s.globalNotes, note)
		return note
	}
	c := s.ensure(key, contactName)
	c.Notes = append(c.Notes, note)
	c.UpdatedAt = ts
	return note
}

// Notes lists a contact's notes, or the global notes when key is empty.
func (s *Store) Notes(key string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == "" {
		return append([]Note(nil), s.globalNotes...)
	}
	if c, ok := s.contacts[key]; ok {
		return append([]Note(nil), c.Notes...)
	}
	return nil
}

// SearchNotes does a case-insensitive substring search across global and
// contact notes.
func (s *Store) SearchNotes(query string) []NoteHit {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []NoteHit
	for _, n := range s.globalNotes {
		if strings.Contains(strings.ToLower(n.Text), q) {
			hits = append(hits, NoteHit{Note: n})
		}
	}
	for key, c := range s.contacts {
		for _, n := range c.Notes {
			if strings.Contains(strings.ToLower(n.Text), q) {
				hits = append(hits, NoteHit{Key: key, Note: n})
			}
		}
	}
	return hits
}

// DeleteNote removes a note by id wherever it lives. Returns false when the
// id is unknown.
func (s *Store) DeleteNote(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.globalNotes {
		if n.ID == noteID {
			s.globalNotes = append(s.globalNotes[:i], s.globalNotes[i+1:]...)
			return true
		}
	}
	for _, c := range s.contacts {
		for i, n := range c.Notes {
			if n.ID == noteID {
				c.Notes = append(c.Notes[:i], c.Notes[i+1:]...)
				c.UpdatedAt = s.stamp()
				return true
			}
		}
	}
	return false
}

// AddTags adds normalized tags to a contact and returns the full tag set.
func (s *Store) AddTags(key string, tags []string, contactName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(key, contactName)
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" || contains(c.Tags, normalized) {
			continue
		}
		c.Tags = append(c.Tags, normalized)
	}
	c.UpdatedAt = s.stamp()
	return append([]string(nil), c.Tags...)
}

// RemoveTags drops the named tags from a contact.
func (s *Store) RemoveTags(key string, tags []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[key]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(tags))
	for _, tag := range tags {
		drop[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	kept := c.Tags[:0]
	for _, tag := range c.Tags {
		if !drop[tag] {
			kept = append(kept, tag)
		}
	}
	c.Tags = kept
	c.UpdatedAt = s.stamp()
	return append([]string(nil), c.Tags...)
}

// ContactsByTag lists contacts carrying the tag.
func (s *Store) ContactsByTag(tag string) []Contact {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Contact
	for _, c := range s.contacts {
		if contains(c.Tags, normalized) {
			out = append(out, *cloneContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AllTags returns every tag with its usage count, most used first.
func (s *Store) AllTags() []TagCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range s.contacts {
		for _, tag := range c.Tags {
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// SetMetadata sets one metadata field (birthday, company, role, anything).
func (s *Store) SetMetadata(key, field, value, contactName string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(key, contactName)
	c.Metadata[field] = value
	c.UpdatedAt = s.stamp()
	out := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		out[k] = v
	}
	return out
}

// Profile returns the full CRM profile for a key, or nil when untracked.
func (s *Store) Profile(key string) *Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.contacts[key]; ok {
		return cloneContact(c)
	}
	return nil
}

// Rename sets the contact's saved name unconditionally.
func (s *Store) Rename(key, name string) *Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(key, name)
	c.Name = name
	c.UpdatedAt = s.stamp()
	return cloneContact(c)
}

// SetFollowUp records a follow-up date for a contact.
func (s *Store) SetFollowUp(key, date, contactName string) *Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(key, contactName)
	c.FollowUpDate = date
	c.UpdatedAt = s.stamp()
	return cloneContact(c)
}

// LogInteraction stamps the last time we heard from a contact.
func (s *Store) LogInteraction(key, contactName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(key, contactName)
	ts := s.stamp()
	c.LastInteraction = ts
	c.UpdatedAt = ts
}

// AddReminder schedules a reminder.
func (s *Store) AddReminder(text, dueAt, targetKey, targetMessage string) Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Reminder{
		ID:            uuid.NewString(),
		Text:          text,
		DueAt:         dueAt,
		TargetKey:     targetKey,
		TargetMessage: targetMessage,
		Status:        ReminderPending,
		CreatedAt:     s.stamp(),
	}
	s.reminders = append(s.reminders, r)
	return *r
}

// Reminders lists reminders, optionally filtered by status.
func (s *Store) Reminders(status string) []Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, r := range s.reminders {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	return out
}

// DueReminders lists pending reminders whose due time has passed.
func (s *Store) DueReminders() []Reminder {
	now := s.stamp()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, r := range s.reminders {
		if r.Status == ReminderPending && r.DueAt <= now {
			out = append(out, *r)
		}
	}
	return out
}

// CompleteReminder marks a reminder done.
func (s *Store) CompleteReminder(id string) (Reminder, error) {
	return s.setReminderStatus(id, ReminderDone)
}

// CancelReminder marks a reminder cancelled.
func (s *Store) CancelReminder(id string) (Reminder, error) {
	return s.setReminderStatus(id, ReminderCancelled)
}

func (s *Store) setReminderStatus(id, status string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			r.Status = status
			return *r, nil
		}
	}
	return Reminder{}, fmt.Errorf("crm: unknown reminder %q", id)
}

// SetAutoReply sets the per-contact override. Mode is "on", "off", or
// "default" to fall back to the global setting.
func (s *Store) SetAutoReply(key, mode, contactName string) (*Contact, error) {
	switch mode {
	case "on", "off", "default":
	default:
		return nil, fmt.Errorf("crm: invalid auto-reply mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(key, contactName)
	if mode == "default" {
		c.AutoReply = ""
	} else {
		c.AutoReply = mode
	}
	c.UpdatedAt = s.stamp()
	return cloneContact(c), nil
}

// AutoReplyOverride satisfies the auto-reply dispatcher's override source.
func (s *Store) AutoReplyOverride(key string) autoreply.Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[key]
	if !ok {
		return autoreply.OverrideUnset
	}
	switch c.AutoReply {
	case "on":
		return autoreply.OverrideOn
	case "off":
		return autoreply.OverrideOff
	default:
		return autoreply.OverrideUnset
	}
}

type snapshot struct {
	Version     int                 `json:"version"`
	Contacts    map[string]*Contact `json:"contacts"`
	Reminders   []*Reminder         `json:"reminders"`
	GlobalNotes []Note              `json:"global_notes"`
}

// Snapshot serializes the dataset for the flusher.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(snapshot{
		Version:     SnapshotVersion,
		Contacts:    s.contacts,
		Reminders:   s.reminders,
		GlobalNotes: s.globalNotes,
	})
}

// Restore replaces the dataset from a snapshot.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("crm: decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("crm: unsupported snapshot version %d", snap.Version)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = snap.Contacts
	if s.contacts == nil {
		s.contacts = make(map[string]*Contact)
	}
	for _, c := range s.contacts {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
	}
	s.reminders = snap.Reminders
	s.globalNotes = snap.GlobalNotes
	return nil
}

func cloneContact(c *Contact) *Contact {
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	out.Notes = append([]Note(nil), c.Notes...)
	out.Metadata = make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
