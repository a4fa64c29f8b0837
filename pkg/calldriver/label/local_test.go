package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalPasswordBucket(t *testing.T) {
	l := NewLocal()
	got := l.Label([]string{
		"Password reset needed, account locked",
		"locked account after password reset",
		"User locked out, reset password please",
	})
	assert.Equal(t, "Password Reset / Unlock", got.Title)
	assert.Equal(t, lexiconRationale, got.Rationale)
	assert.Equal(t, SourceLocal, got.Source)
}

func TestLocalPrefixCredit(t *testing.T) {
	l := NewLocal()
	// "printers" and "printing" only match through the "print" prefix.
	got := l.Label([]string{"printers offline", "printing stalls"})
	assert.Equal(t, "Printing / Scanning", got.Title)
}

func TestLocalSalienceFallback(t *testing.T) {
	l := NewLocal()
	got := l.Label([]string{
		"badge reader rejects card",
		"badge reader blinking red",
		"badge reader offline lobby",
	})
	assert.Equal(t, salienceRationale, got.Rationale)
	assert.Contains(t, got.Title, "Badge")
	assert.Contains(t, got.Title, " / ")
}

func TestLocalNeverEmpty(t *testing.T) {
	l := NewLocal()
	for _, members := range [][]string{
		nil,
		{""},
		{"   "},
		{"a b c"},
		{"the and of"},
		{"zz qq"},
	} {
		got := l.Label(members)
		assert.NotEmpty(t, got.Title, "members %q", members)
	}
	assert.Equal(t, "Other", l.Label(nil).Title)
}

func TestLocalDeterministic(t *testing.T) {
	l := NewLocal()
	members := []string{"sap gui freezes", "sap transaction slow", "kiosk screensaver stuck", "kiosk badge"}
	first := l.Label(members)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, l.Label(members))
	}
}

func TestKeywordsFallback(t *testing.T) {
	l := NewLocal()
	got := l.keywords([]string{"kiosk kiosk lobby", "kiosk frozen"})
	assert.Equal(t, []string{"kiosk", "lobby", "frozen"}, got)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Badge Reader / Lobby", TitleCase("badge reader / LOBBY"))
	assert.Equal(t, "O365 Mailbox", TitleCase("o365 mailbox"))
}
