package keys

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"972548841488@s.whatsapp.net", "972548841488@s.whatsapp.net", false},
		{"+972548841488", "972548841488@s.whatsapp.net", false},
		{"972548841488", "972548841488@s.whatsapp.net", false},
		{"054-884-1488", "0548841488@s.whatsapp.net", false},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPredicates(t *testing.T) {
	if !IsPhone("1234567@s.whatsapp.net") || IsPhone("1234567@lid") {
		t.Error("IsPhone misclassifies")
	}
	if !IsLID("98765@lid") || IsLID("98765@g.us") {
		t.Error("IsLID misclassifies")
	}
	if !IsGroup("123-456@g.us") || IsGroup("123@lid") {
		t.Error("IsGroup misclassifies")
	}
	if !IsBroadcast("status@broadcast") {
		t.Error("status@broadcast not detected")
	}
	if IsBroadcast("1234567@s.whatsapp.net") {
		t.Error("phone key misdetected as broadcast")
	}
}

func TestBare(t *testing.T) {
	if got := Bare("972548841488@s.whatsapp.net"); got != "972548841488" {
		t.Errorf("Bare = %q", got)
	}
	if got := Bare("nodomain"); got != "nodomain" {
		t.Errorf("Bare passthrough = %q", got)
	}
}
