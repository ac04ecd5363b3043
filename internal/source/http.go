package source

import (
	"io"
	"net/http"
	"time"
)

// defaultHTTPTimeout bounds a single request/response exchange. Per-fetch
// deadlines are owned by the caller's context; this is the last-resort cap.
const defaultHTTPTimeout = 30 * time.Second

// bodyPreviewLimit caps how much of an error response body ends up in logs
// and error summaries.
const bodyPreviewLimit = 512

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// bodyPreview drains up to bodyPreviewLimit bytes of a response body for
// error reporting. The body is not closed here.
func bodyPreview(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, bodyPreviewLimit))
	return string(b)
}
