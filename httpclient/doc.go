// Package httpclient provides the retry client: a wrapper around an HTTP
// transport that re-issues a request with exponential backoff when the
// failure looks transient.
//
// Classification per attempt:
//
//	2xx                              -> success, response returned
//	5xx, 429                         -> retryable
//	any other status                 -> terminal (status and body kept)
//	timeout / connection / I/O fault -> retryable
//	any other transport fault        -> terminal
//
// After a retryable failure the client sleeps BaseDelay * 2^(attempt+1)
// (attempt is 0-based) unless it was the last attempt. Defaults are three
// attempts, a 1s base and a 45s per-attempt timeout.
//
//	c, _ := httpclient.New(httpclient.DefaultConfig())
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
//	resp, err := c.ExecuteWithRetry(ctx, req)
//	switch {
//	case httpclient.IsTerminal(err):
//	case httpclient.IsExhausted(err):
//	}
package httpclient
