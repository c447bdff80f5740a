package model

import "time"

// UssdSession reconstructs a multi-step USSD flow across stateless
// requests.  Each keystroke arrives as a fresh HTTP request correlated
// only by the provider's opaque session id, so the current menu and
// any half-collected answers live here between requests.  Sessions are
// created lazily on the first request for an unseen id and vanish by
// expiry; the provider never reuses session ids.
//
// Fields:
//
//	SessionID   – provider-issued opaque session identifier.
//	PhoneNumber – caller's MSISDN as reported by the provider.
//	CurrentMenu – name of the state the menu machine will dispatch to.
//	MenuData    – scratch answers collected so far (resource id, page,
//	              date, pin...), merged shallowly on every transition.
//	LastInput   – most recent raw input segment, kept for debugging.
//	ExpiresAt   – absolute expiry, refreshed on every interaction.
type UssdSession struct {
	SessionID   string            `json:"session_id"`
	PhoneNumber string            `json:"phone_number"`
	CurrentMenu string            `json:"current_menu"`
	MenuData    map[string]string `json:"menu_data"`
	LastInput   string            `json:"last_input"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Data returns the scratch value for key, or def when absent.
func (s *UssdSession) Data(key, def string) string {
	if v, ok := s.MenuData[key]; ok {
		return v
	}
	return def
}

// SetData stores a single scratch value, allocating the map on first use.
func (s *UssdSession) SetData(key, value string) {
	if s.MenuData == nil {
		s.MenuData = make(map[string]string)
	}
	s.MenuData[key] = value
}

// UpdateState moves the session to a new menu and shallow-merges the
// given scratch data: new keys overwrite, untouched keys survive.  The
// merge is never a full replace, so values collected in earlier steps
// (a selected hall, an entered date) remain available downstream.
func (s *UssdSession) UpdateState(menu string, data map[string]string) {
	s.CurrentMenu = menu
	for k, v := range data {
		s.SetData(k, v)
	}
}

// IsExpired reports whether the session's absolute deadline has passed.
func (s *UssdSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
