// Package keys holds conversation key suffix predicates and phone
// normalization shared by the identity map, message store and API layer.
//
// A conversation key is a JID-shaped string: phone-based
// (<digits>@s.whatsapp.net), anonymous LID (<digits>@lid), group
// (<id>@g.us) or the status broadcast pseudo-chat.
package keys

import (
	"fmt"
	"strings"
)

const (
	// PhoneSuffix marks a stable phone-based conversation key.
	PhoneSuffix = "@s.whatsapp.net"
	// LIDSuffix marks an anonymous assignment-time key.
	LIDSuffix = "@lid"
	// GroupSuffix marks a group key. Groups are never identity-resolved.
	GroupSuffix = "@g.us"
	// StatusBroadcast is the status pseudo-conversation.
	StatusBroadcast = "status@broadcast"
)

// IsPhone reports whether key is in the phone identifier space.
func IsPhone(key string) bool {
	return strings.HasSuffix(key, PhoneSuffix)
}

// IsLID reports whether key is in the LID identifier space.
func IsLID(key string) bool {
	return strings.HasSuffix(key, LIDSuffix)
}

// IsGroup reports whether key identifies a group chat.
func IsGroup(key string) bool {
	return strings.HasSuffix(key, GroupSuffix)
}

// IsBroadcast reports whether key is a broadcast or status pseudo-chat.
func IsBroadcast(key string) bool {
	return key == StatusBroadcast || strings.HasSuffix(key, "@broadcast")
}

// NormalizePhone converts a phone number in any common notation
// ("+972548841488", "054-884-1488", a bare digit run, or an already
// canonical key) to a phone conversation key.
func NormalizePhone(input string) (string, error) {
	if IsPhone(input) {
		return input, nil
	}
	var digits strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 7 {
		return "", fmt.Errorf("invalid phone number %q: need a full international number or a key like 972548841488%s", input, PhoneSuffix)
	}
	return digits.String() + PhoneSuffix, nil
}

// Bare strips the identifier-space suffix, returning the user part.
func Bare(key string) string {
	if i := strings.IndexByte(key, '@'); i >= 0 {
		return key[:i]
	}
	return key
}
