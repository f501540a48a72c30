package session

import "github.com/pcarvalho/wacrm/internal/config"

// DefaultSessionName is used when neither the flag nor the config file
// names a session.
const DefaultSessionName = "main"

// Resolve picks the active session name: an explicit --session flag wins,
// then the config file's default_session, then DefaultSessionName. A config
// read error falls through to the default here; the daemon surfaces it when
// it loads the config for real.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
