package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionDataMerge(t *testing.T) {
	s := &UssdSession{SessionID: "s1", CurrentMenu: "main"}

	s.UpdateState("browse_halls", map[string]string{"page": "1"})
	s.UpdateState("select_date", map[string]string{"hall_id": "7"})

	// earlier keys survive later transitions
	assert.Equal(t, "select_date", s.CurrentMenu)
	assert.Equal(t, "1", s.Data("page", ""))
	assert.Equal(t, "7", s.Data("hall_id", ""))

	// new values overwrite, defaults fill gaps
	s.UpdateState("browse_halls", map[string]string{"page": "2"})
	assert.Equal(t, "2", s.Data("page", ""))
	assert.Equal(t, "fallback", s.Data("missing", "fallback"))
}

func TestSessionSetDataAllocates(t *testing.T) {
	var s UssdSession
	s.SetData("k", "v")
	assert.Equal(t, "v", s.Data("k", ""))
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Now().UTC()
	s := &UssdSession{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(2*time.Minute)))
	// the deadline itself has not passed yet
	assert.False(t, s.IsExpired(s.ExpiresAt))
}
