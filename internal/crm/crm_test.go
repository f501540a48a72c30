package crm

import (
	"testing"
	"time"

	"github.com/pcarvalho/wacrm/internal/autoreply"
)

const key = "972500000001@s.whatsapp.net"

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	return s
}

func TestNotesPerContactAndGlobal(t *testing.T) {
	s := newStore(t)

	contactNote := s.AddNote(key, "met at the conference", "Alice")
	globalNote := s.AddNote("", "renew domain", "")

	if contactNote.ID == "" || globalNote.ID == "" {
		t.Fatal("notes must get ids")
	}
	if got := s.Notes(key); len(got) != 1 || got[0].Text != "met at the conference" {
		t.Errorf("contact notes = %+v", got)
	}
	if got := s.Notes(""); len(got) != 1 || got[0].Text != "renew domain" {
		t.Errorf("global notes = %+v", got)
	}
	if s.Profile(key).Name != "Alice" {
		t.Error("name not captured on first touch")
	}
}

func TestSearchAndDeleteNotes(t *testing.T) {
	s := newStore(t)
	s.AddNote(key, "Follow up about INVOICE", "")
	s.AddNote("", "invoice template ready", "")
	kept := s.AddNote(key, "unrelated", "")

	hits := s.SearchNotes("invoice")
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}

	if !s.DeleteNote(kept.ID) {
		t.Error("delete by id failed")
	}
	if s.DeleteNote("nope") {
		t.Error("unknown id must report false")
	}
	if got := s.Notes(key); len(got) != 1 {
		t.Errorf("notes after delete = %+v", got)
	}
}

func TestTags(t *testing.T) {
	s := newStore(t)

	tags := s.AddTags(key, []string{" Work ", "lead", "work"}, "")
	if len(tags) != 2 {
		t.Fatalf("tags = %v, want normalized deduped pair", tags)
	}
	s.AddTags("other@s.whatsapp.net", []string{"work"}, "")

	all := s.AllTags()
	if len(all) != 2 || all[0].Tag != "work" || all[0].Count != 2 {
		t.Errorf("AllTags = %+v", all)
	}

	byTag := s.ContactsByTag("WORK")
	if len(byTag) != 2 {
		t.Errorf("ContactsByTag = %d contacts, want 2", len(byTag))
	}

	left := s.RemoveTags(key, []string{"work"})
	if len(left) != 1 || left[0] != "lead" {
		t.Errorf("after remove = %v", left)
	}
}

func TestMetadataAndFollowUp(t *testing.T) {
	s := newStore(t)

	meta := s.SetMetadata(key, "company", "Acme", "Alice")
	if meta["company"] != "Acme" {
		t.Errorf("metadata = %v", meta)
	}
	s.SetFollowUp(key, "2026-09-01", "")
	s.LogInteraction(key, "")

	p := s.Profile(key)
	if p.FollowUpDate != "2026-09-01" || p.LastInteraction == "" {
		t.Errorf("profile = %+v", p)
	}
	if s.Profile("unknown@s.whatsapp.net") != nil {
		t.Error("untracked key must return nil")
	}
}

func TestReminderLifecycle(t *testing.T) {
	s := newStore(t)

	due := s.AddReminder("call back", "2026-07-01T00:00:00Z", key, "hey, calling you now")
	s.AddReminder("later", "2030-01-01T00:00:00Z", "", "")

	if got := s.DueReminders(); len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("due = %+v", got)
	}

	if _, err := s.CompleteReminder(due.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := s.DueReminders(); len(got) != 0 {
		t.Errorf("due after complete = %+v", got)
	}
	if got := s.Reminders(ReminderDone); len(got) != 1 {
		t.Errorf("done = %+v", got)
	}
	if _, err := s.CancelReminder("missing"); err == nil {
		t.Error("unknown reminder must error")
	}
}

func TestAutoReplyOverride(t *testing.T) {
	s := newStore(t)

	if got := s.AutoReplyOverride(key); got != autoreply.OverrideUnset {
		t.Errorf("untracked override = %v", got)
	}

	if _, err := s.SetAutoReply(key, "off", ""); err != nil {
		t.Fatal(err)
	}
	if got := s.AutoReplyOverride(key); got != autoreply.OverrideOff {
		t.Errorf("override = %v, want off", got)
	}

	if _, err := s.SetAutoReply(key, "on", ""); err != nil {
		t.Fatal(err)
	}
	if got := s.AutoReplyOverride(key); got != autoreply.OverrideOn {
		t.Errorf("override = %v, want on", got)
	}

	if _, err := s.SetAutoReply(key, "default", ""); err != nil {
		t.Fatal(err)
	}
	if got := s.AutoReplyOverride(key); got != autoreply.OverrideUnset {
		t.Errorf("override = %v, want unset after default", got)
	}

	if _, err := s.SetAutoReply(key, "maybe", ""); err == nil {
		t.Error("invalid mode must error")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newStore(t)
	s.AddNote(key, "note", "Alice")
	s.AddTags(key, []string{"friend"}, "")
	s.AddReminder("ping", "2026-09-01T00:00:00Z", "", "")
	s.AddNote("", "global", "")

	data, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewStore(nil)
	if err := restored.Restore(data); err != nil {
		t.Fatal(err)
	}
	if restored.Profile(key) == nil || len(restored.Notes("")) != 1 {
		t.Error("restore lost data")
	}
	if got := restored.Reminders(""); len(got) != 1 {
		t.Errorf("reminders = %+v", got)
	}

	if err := restored.Restore([]byte(`{"version":9}`)); err == nil {
		t.Error("unknown snapshot version must be rejected")
	}
}
