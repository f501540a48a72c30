package identity

import "github.com/pcarvalho/wacrm/internal/keys"

// EvidenceSource tags where a LID/phone pair was learned from.
type EvidenceSource string

const (
	// SourceContactSync: a synced contact record carried both key forms.
	SourceContactSync EvidenceSource = "contact_sync"
	// SourceChatMetadata: history-sync chat metadata carried a sibling pair.
	SourceChatMetadata EvidenceSource = "chat_metadata"
	// SourcePhoneShare: an explicit phone-number-disclosure notification.
	SourcePhoneShare EvidenceSource = "phone_share"
	// SourceBootstrap: the bulk existence/identity lookup.
	SourceBootstrap EvidenceSource = "bootstrap"
	// SourceManual: operator registration through the API.
	SourceManual EvidenceSource = "manual"
)

// Evidence is one LID/phone pair extracted at the transport boundary. The
// adapter decides which of a record's fields are which; by the time evidence
// reaches the engine there is nothing left to sniff.
type Evidence struct {
	LID    string
	Phone  string
	Source EvidenceSource
}

// PairFromSiblings orders an (a, b) sibling pair into (lid, phone) when
// exactly one of the two is LID-form and the other phone-form. Chat metadata
// does not guarantee which field holds which form.
func PairFromSiblings(a, b string, source EvidenceSource) (Evidence, bool) {
	switch {
	case isLIDPhonePair(a, b):
		return Evidence{LID: a, Phone: b, Source: source}, true
	case isLIDPhonePair(b, a):
		return Evidence{LID: b, Phone: a, Source: source}, true
	}
	return Evidence{}, false
}

func isLIDPhonePair(lid, phone string) bool {
	return keys.IsLID(lid) && keys.IsPhone(phone)
}
