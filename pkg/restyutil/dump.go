// Package restyutil writes the http exchanges of a resty client to disk, it is
// used to capture portal pages when the markup drifts.
package restyutil

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"libreminder/internal/components/assert"
	"libreminder/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const report_dump_write = "restyutil.write-dump"

type Output interface {
	Write(name string, contents string)
}

type FilesystemOutput struct {
	directory string
	tel       telemetry.API
}

// NewFilesystemOutput creates the directory if needed, existing dumps are kept.
func NewFilesystemOutput(dir string, tel telemetry.API) (FilesystemOutput, error) {
	assert.NotNil(tel)
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, tel: tel}, nil
}

func (o FilesystemOutput) Write(name string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		o.tel.ReportWarning(report_dump_write, name, err)
	}
}

// redactedHeaders never make it into a dump, they carry the session.
var redactedHeaders = map[string]bool{
	"Cookie":        true,
	"Set-Cookie":    true,
	"Authorization": true,
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			if redactedHeaders[http.CanonicalHeaderKey(k)] {
				v = "<redacted>"
			}
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

// 1: request method
// 2: request url
// 3: request headers
// 4: response status
// 5: final url
// 6: response headers
// 7: response body
const dumpTemplate = `---- REQUEST ----

%s %s

%s

---- RESPONSE ----

%d %s

%s

%s`

// formatExchange renders a response and the request leading to it. Request
// bodies are left out since the login request carries the patron's secret.
func formatExchange(res *resty.Response) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
	}

	finalUrl := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL.String()
	}

	return fmt.Sprintf(
		dumpTemplate,
		res.Request.Method, res.Request.URL,
		requestHeaders,
		res.StatusCode(), finalUrl,
		formatHeaders(res.Header()),
		res.String(),
	)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func dumpName(id uint64, res *resty.Response) string {
	path := "root"
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		path = strings.Trim(unsafeChars.ReplaceAllString(res.RawResponse.Request.URL.Path, "_"), "_")
	}
	if len(path) > 60 {
		path = path[:60]
	}
	return fmt.Sprintf("%03d-%s-%s.txt", id, strings.ToLower(res.Request.Method), path)
}

// InstrumentDump writes every response of the client to output, numbered in
// the order they were received.
func InstrumentDump(client *resty.Client, output Output) {
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&counter, 1)
		output.Write(dumpName(id, res), formatExchange(res))
		return nil
	})
}
