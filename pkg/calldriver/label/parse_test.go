package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

func TestParseResponseStrict(t *testing.T) {
	title, rationale, err := ParseResponse(`{"title":"VPN Connection Drops","rationale":"Tunnel disconnects after sleep."}`)
	require.NoError(t, err)
	assert.Equal(t, "VPN Connection Drops", title)
	assert.Equal(t, "Tunnel disconnects after sleep.", rationale)

	title, rationale, err = ParseResponse(`  {"title":"Printer Jams","rationale":" "}  `)
	require.NoError(t, err)
	assert.Equal(t, "Printer Jams", title)
	assert.Empty(t, rationale)
}

func TestParseResponseCleanup(t *testing.T) {
	title, _, err := ParseResponse("```json\n{\"title\":\"Outlook Sync\",\"rationale\":\"x\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Outlook Sync", title)

	title, _, err = ParseResponse(`Sure! Here it is: {"title":"Teams Audio","rationale":"y"} Hope that helps.`)
	require.NoError(t, err)
	assert.Equal(t, "Teams Audio", title)
}

func TestParseResponseRejects(t *testing.T) {
	bad := map[string]string{
		"prose":          "The title is VPN Issues",
		"extra field":    `{"title":"VPN","rationale":"r","confidence":0.9}`,
		"non-string":     `{"title":42,"rationale":"r"}`,
		"null title":     `{"title":null,"rationale":"r"}`,
		"missing title":  `{"rationale":"r"}`,
		"no rationale":   `{"title":"Printer Jams"}`,
		"null rationale": `{"title":"Printer Jams","rationale":null}`,
		"bare string":    `"VPN Issues"`,
		"empty title":    `{"title":"","rationale":"r"}`,
		"only fillers":   `{"title":"The Of And","rationale":"r"}`,
		"control chars":  "{\"title\":\"VPN\\u0007Drops\",\"rationale\":\"r\"}",
		"too long":       `{"title":"Aaaaaaaaaa Bbbbbbbbbb Cccccccccc Dddddddddd Eeeeeeeeee Ffffffffff Gggggggggg Hhhhhhhhhh Iiiiiiiiii","rationale":"r"}`,
	}
	for name, raw := range bad {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseResponse(raw)
			assert.ErrorIs(t, err, internalerr.ErrMalformedLabel)
		})
	}
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"The VPN for Remote Users": "VPN Remote Users",
		"  -Password Reset-  ":     "Password Reset",
		"Access to the Drive /":    "Access Drive",
		"Outlook   and   Calendar": "Outlook Calendar",
		"an":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTitle(in), in)
	}
}

func TestParseResponseCleanupTakesFirstObject(t *testing.T) {
	title, _, err := ParseResponse(`[{"title":"VPN Drops","rationale":"r"}]`)
	require.NoError(t, err)
	assert.Equal(t, "VPN Drops", title)
}
