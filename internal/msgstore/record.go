package msgstore

// Record is one chat message. MsgID is unique within its conversation only;
// re-delivery of an ID overwrites the stored record in place.
type Record struct {
	MsgID      string `json:"msg_id"`
	SenderKey  string `json:"sender_key"`
	SenderName string `json:"sender_name,omitempty"`
	FromMe     bool   `json:"from_me,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Body       string `json:"body,omitempty"`
	Status     string `json:"status,omitempty"`
	Timestamp  int64  `json:"timestamp"` // epoch milliseconds
}

// HasPayload reports whether the record carries content. Records without
// payload (protocol stubs, deletions) are stored but excluded from queries.
func (r *Record) HasPayload() bool {
	return r.Kind != "" || r.Body != ""
}

// Patch is a partial update applied to a stored record. Nil fields are left
// untouched. Status acks are the usual case.
type Patch struct {
	Status *string
	Body   *string
	Kind   *string
}

func (r *Record) apply(p Patch) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Body != nil {
		r.Body = *p.Body
	}
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
}
