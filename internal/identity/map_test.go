package identity

import (
	"testing"
)

const (
	lid1   = "111111111@lid"
	lid2   = "222222222@lid"
	phone1 = "972500000001@s.whatsapp.net"
	phone2 = "972500000002@s.whatsapp.net"
)

func TestRegisterAndResolve(t *testing.T) {
	m := NewMap(nil)

	if !m.Register(lid1, phone1) {
		t.Fatal("first registration should change the map")
	}
	if got := m.Resolve(lid1); got != phone1 {
		t.Errorf("Resolve(lid) = %q, want %q", got, phone1)
	}
	if got := m.LIDFor(phone1); got != lid1 {
		t.Errorf("LIDFor(phone) = %q, want %q", got, lid1)
	}

	// Resolve is total: unmapped and non-LID inputs pass through.
	if got := m.Resolve(lid2); got != lid2 {
		t.Errorf("Resolve(unmapped lid) = %q, want passthrough", got)
	}
	if got := m.Resolve(phone1); got != phone1 {
		t.Errorf("Resolve(phone) = %q, want passthrough", got)
	}
	if got := m.Resolve("123-456@g.us"); got != "123-456@g.us" {
		t.Errorf("Resolve(group) = %q, want passthrough", got)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	m := NewMap(nil)
	m.Register(lid1, phone1)

	if m.Register(lid1, phone1) {
		t.Error("re-registering the identical pair should be a no-op")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if m.Resolve(lid1) != phone1 || m.LIDFor(phone1) != lid1 {
		t.Error("both directions must be unchanged after the second call")
	}
}

func TestRegisterRejectsMalformed(t *testing.T) {
	m := NewMap(nil)

	cases := [][2]string{
		{"", phone1},
		{lid1, ""},
		{phone1, phone1},         // lid arg not LID-form
		{lid1, lid2},             // phone arg not phone-form
		{"111111111", phone1},    // bare user, no suffix
		{lid1, "972500000001"},   // bare user, no suffix
		{"123-456@g.us", phone1}, // group key
	}
	for _, c := range cases {
		if m.Register(c[0], c[1]) {
			t.Errorf("Register(%q, %q) should be rejected", c[0], c[1])
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0 after rejected registrations", m.Len())
	}
}

func TestRegisterOverwrite(t *testing.T) {
	m := NewMap(nil)
	m.Register(lid1, phone1)

	if !m.Register(lid1, phone2) {
		t.Fatal("remapping to a different phone should change the map")
	}
	if got := m.Resolve(lid1); got != phone2 {
		t.Errorf("Resolve after remap = %q, want %q", got, phone2)
	}
	// The stale reverse entry must be gone.
	if got := m.LIDFor(phone1); got != "" {
		t.Errorf("LIDFor(old phone) = %q, want empty", got)
	}
	if got := m.LIDFor(phone2); got != lid1 {
		t.Errorf("LIDFor(new phone) = %q, want %q", got, lid1)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := NewMap(nil)
	m.Register(lid1, phone1)
	m.Register(lid2, phone2)

	data, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewMap(nil)
	if err := restored.Restore(data); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 2 {
		t.Errorf("restored Len = %d, want 2", restored.Len())
	}
	if restored.Resolve(lid1) != phone1 || restored.LIDFor(phone2) != lid2 {
		t.Error("restored map lost a direction")
	}
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	m := NewMap(nil)
	if err := m.Restore([]byte(`{"version":99,"lidToPhone":{},"phoneToLid":{}}`)); err == nil {
		t.Error("expected error for unknown snapshot version")
	}
	if err := m.Restore([]byte(`{not json`)); err == nil {
		t.Error("expected error for corrupt snapshot")
	}
}

func TestPairFromSiblings(t *testing.T) {
	ev, ok := PairFromSiblings(lid1, phone1, SourceChatMetadata)
	if !ok || ev.LID != lid1 || ev.Phone != phone1 {
		t.Errorf("PairFromSiblings(lid, phone) = %+v, ok=%v", ev, ok)
	}

	// Order must not be assumed.
	ev, ok = PairFromSiblings(phone1, lid1, SourceChatMetadata)
	if !ok || ev.LID != lid1 || ev.Phone != phone1 {
		t.Errorf("PairFromSiblings(phone, lid) = %+v, ok=%v", ev, ok)
	}

	if _, ok := PairFromSiblings(phone1, phone2, SourceChatMetadata); ok {
		t.Error("two phone keys must not form a pair")
	}
	if _, ok := PairFromSiblings(lid1, lid2, SourceChatMetadata); ok {
		t.Error("two LID keys must not form a pair")
	}
}
