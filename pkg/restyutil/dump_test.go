package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"libreminder/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput map[string]string

func (m memoryOutput) Write(name, contents string) {
	m[name] = contents
}

func TestInstrumentDump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "secret-session"})
		w.Write([]byte("<html>listing</html>"))
	}))
	defer server.Close()

	output := memoryOutput{}
	client := resty.New()
	InstrumentDump(client, output)

	_, err := client.R().
		SetHeader("Cookie", "sid=abc").
		SetFormData(map[string]string{"password": "hunter22"}).
		Post(server.URL + "/auth/login.do")
	require.NoError(t, err)

	dump, ok := output["001-post-auth_login_do.txt"]
	require.True(t, ok, output)
	require.Contains(t, dump, "POST "+server.URL+"/auth/login.do")
	require.Contains(t, dump, "<html>listing</html>")
	require.Contains(t, dump, "Set-Cookie: <redacted>")
	require.NotContains(t, dump, "hunter22")
	require.NotContains(t, dump, "secret-session")
	require.NotContains(t, dump, "sid=abc")
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	rec := telemetry.NewRecorder()
	output, err := NewFilesystemOutput(dir, rec)
	require.NoError(t, err)

	output.Write("001-get-root.txt", "contents")
	contents, err := os.ReadFile(filepath.Join(dir, "001-get-root.txt"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
	require.Empty(t, rec.Reports("warning"))

	output.Write(filepath.Join("missing", "002-get-root.txt"), "contents")
	warnings := rec.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "restyutil.write-dump", warnings[0].Id)
}
