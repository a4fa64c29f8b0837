package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

func TestMapColumns(t *testing.T) {
	cases := []struct {
		name    string
		columns []string
		want    Mapping
	}{
		{
			name:    "canonical",
			columns: []string{"number", "short_description", "description"},
			want:    Mapping{FieldRef: "number", FieldShortDescription: "short_description", FieldDescription: "description"},
		},
		{
			name:    "aliases",
			columns: []string{"Incident", "Subject", "Work Notes", "Priority"},
			want:    Mapping{FieldRef: "Incident", FieldShortDescription: "Subject", FieldDescription: "Work Notes"},
		},
		{
			name:    "partial",
			columns: []string{"Ticket Summary Text", "Problem Details (long)"},
			want:    Mapping{FieldShortDescription: "Ticket Summary Text", FieldDescription: "Problem Details (long)"},
		},
		{
			name:    "short description wins its own column",
			columns: []string{"Short Description", "Desc"},
			want:    Mapping{FieldShortDescription: "Short Description", FieldDescription: "Desc"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapColumns(tc.columns))
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "VPN drops every hour", StripHTML("<p>VPN <b>drops</b></p><div>every hour</div>"))
	assert.Equal(t, "a & b", StripHTML("a &amp; b"))
	assert.Equal(t, "visible", StripHTML("<style>p{}</style><script>x()</script>visible"))
	assert.Equal(t, "plain text", StripHTML("  plain \n text "))
	assert.Equal(t, "", StripHTML(""))
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffNumber,Short Description,Description,Priority\n" +
		"INC001,VPN tunnel broken,\"<p>GlobalProtect <br>keeps dropping</p>\",P2\n" +
		"INC002,Printer jam,,\n" +
		"INC003,short row\n"
	tickets, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	assert.Equal(t, "INC001", tickets[0].Ref)
	assert.Equal(t, "GlobalProtect keeps dropping", tickets[0].Description)
	assert.Equal(t, map[string]string{"Priority": "P2"}, tickets[0].Extra)
	assert.Equal(t, "vpn tunnel broken globalprotect keeps dropping", tickets[0].Text())

	assert.Nil(t, tickets[1].Extra)
	assert.Equal(t, "printer jam", tickets[1].Text())
	assert.Equal(t, "short row", tickets[2].Text())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("priority,site\nP1,HQ\n"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	tickets, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestReadJSONL(t *testing.T) {
	in := `{"number":"INC9","short_description":"Teams audio","description":"mic &amp; camera","reopen_count":2}

{"title":"Password reset","details":null}
`
	tickets, err := ReadJSONL(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	assert.Equal(t, "INC9", tickets[0].Ref)
	assert.Equal(t, "mic & camera", tickets[0].Description)
	assert.Equal(t, "2", tickets[0].Extra["reopen_count"])
	assert.Equal(t, "password reset", tickets[1].Text())

	_, err = ReadJSONL(strings.NewReader("{not json}\n"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = ReadJSONL(strings.NewReader(`{"priority":"P1"}`))
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "tickets.csv")
	jsonlPath := filepath.Join(dir, "tickets.ndjson")
	require.NoError(t, os.WriteFile(csvPath, []byte("short_description\nvpn down\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonlPath, []byte(`{"short_description":"vpn down"}`+"\n"), 0o644))

	for _, p := range []string{csvPath, jsonlPath} {
		tickets, err := LoadFile(p)
		require.NoError(t, err, p)
		assert.Equal(t, []string{"vpn down"}, Texts(tickets))
	}

	_, err := Read(strings.NewReader(""), Format("xlsx"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}
