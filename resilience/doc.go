// Package resilience provides the fault-tolerance primitives the rest of
// the toolkit is built on.
//
//   - Retry: generic retry loop with exponential backoff, optional jitter,
//     a RetryIf classifier, and no sleep after the final attempt.
//   - CircuitBreaker: consecutive-failure breaker on sony/gobreaker.
//   - RateLimiter: token bucket on golang.org/x/time/rate.
//
// The patterns compose; httpclient wraps each attempt like this:
//
//	resp, err := resilience.Retry(ctx, retryCfg, func() (*http.Response, error) {
//	    var resp *http.Response
//	    err := cb.Execute(func() error {
//	        return rl.ExecuteWait(ctx, func() error {
//	            var err error
//	            resp, err = doer.Do(req)
//	            return err
//	        })
//	    })
//	    return resp, err
//	})
package resilience
