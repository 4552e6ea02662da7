package propagation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jordanlanch/contactsync/pkg/gateway"
)

// ExecuteWithRetry runs action on key up to maxRetries times, doubling the
// wait after each failure starting from initialDelay. Client errors other
// than 408 and 429 are not retried. notify may be nil.
func ExecuteWithRetry(ctx context.Context, client gateway.Client, key, action string, payload any, maxRetries int, initialDelay time.Duration, notify func(err error, wait time.Duration)) (*gateway.ActionResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries-1)), ctx)

	return backoff.RetryNotifyWithData(func() (*gateway.ActionResult, error) {
		result, err := client.RunAction(ctx, key, action, payload)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return result, err
	}, policy, notify)
}

func retryable(err error) bool {
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return false
	default:
		return true
	}
}
