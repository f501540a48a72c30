// Package autoreply decides whether an inbound message triggers an
// automated response, and dispatches the generation call when it does.
package autoreply

import (
	"github.com/pcarvalho/wacrm/internal/keys"
)

// Override is the per-contact setting. Unset defers to the global config.
type Override string

const (
	OverrideOn    Override = "on"
	OverrideOff   Override = "off"
	OverrideUnset Override = ""
)

// Config is the global auto-reply configuration.
type Config struct {
	Enabled          bool     `json:"enabled" toml:"enabled"`
	PrivateOnly      bool     `json:"privateOnly" toml:"private_only"`
	AllowedGroupKeys []string `json:"groupKeys" toml:"group_keys"`
}

// Inbound is one message as seen by the policy. The reconciliation engine
// resolves the key before the policy ever sees it.
type Inbound struct {
	RawKey      string
	ResolvedKey string
	SenderName  string
	Text        string
	FromMe      bool
}

// Decision is the policy outcome. Reason names the gate that suppressed the
// message, or "dispatch" when it passed.
type Decision struct {
	Dispatch bool
	Reason   string
	Key      string
	Text     string
}

// Suppression reasons, in evaluation order.
const (
	ReasonSelf           = "self"
	ReasonOverrideOff    = "override_off"
	ReasonGlobalDisabled = "global_disabled"
	ReasonGroupGate      = "group_gate"
	ReasonGroupNotListed = "group_not_listed"
	ReasonBroadcast      = "broadcast"
	ReasonEmptyText      = "empty_text"
	ReasonDispatch       = "dispatch"
)

// Decide applies the precedence contract:
//
//	override off beats everything; override on beats the global kill switch
//	but not the group-type gate; an unset override defers fully to cfg.
func Decide(in Inbound, override Override, cfg Config) Decision {
	suppress := func(reason string) Decision {
		return Decision{Reason: reason, Key: in.ResolvedKey}
	}

	if in.FromMe {
		return suppress(ReasonSelf)
	}

	key := in.ResolvedKey
	if key == "" {
		key = in.RawKey
	}

	if override == OverrideOff {
		return suppress(ReasonOverrideOff)
	}
	if override != OverrideOn && !cfg.Enabled {
		return suppress(ReasonGlobalDisabled)
	}

	if keys.IsGroup(key) {
		if cfg.PrivateOnly {
			// Applies even with override on: groups are never
			// auto-replied to in privateOnly mode.
			return suppress(ReasonGroupGate)
		}
		if !containsKey(cfg.AllowedGroupKeys, key) {
			return suppress(ReasonGroupNotListed)
		}
	}

	if keys.IsBroadcast(key) || keys.IsBroadcast(in.RawKey) {
		return suppress(ReasonBroadcast)
	}

	if in.Text == "" {
		return suppress(ReasonEmptyText)
	}

	return Decision{Dispatch: true, Reason: ReasonDispatch, Key: key, Text: in.Text}
}

func containsKey(list []string, key string) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
}
