package cacheproxy

import (
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/loomwright/httpproxy/internal/message"
	"github.com/loomwright/httpproxy/internal/proxyerr"
)

// Resilience wraps origin dials and forwards on the GET/POST path (never the
// CONNECT relay, which must stay opaque and unbuffered) in a retry policy
// composed with a circuit breaker, so a flapping origin cannot pin a
// worker in a retry loop. Per-origin-host breaker state is tracked so one
// bad host does not trip requests to every other host.
type Resilience struct {
	retry retrypolicy.RetryPolicy[*message.Response]

	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[*message.Response]
}

// NewResilience builds a Resilience policy with the package defaults:
// bounded retries on RESOLVE_FAIL/CONNECT_FAIL errors, exponential backoff,
// and a per-host circuit breaker that opens after a run of consecutive failures.
func NewResilience() *Resilience {
	return &Resilience{
		retry:    DefaultRetryPolicy(),
		breakers: make(map[string]circuitbreaker.CircuitBreaker[*message.Response]),
	}
}

// DefaultRetryPolicy retries on RESOLVE_FAIL/CONNECT_FAIL only (never on a
// successfully forwarded response, however it classifies) with bounded
// attempts and exponential backoff.
func DefaultRetryPolicy() retrypolicy.RetryPolicy[*message.Response] {
	return retrypolicy.NewBuilder[*message.Response]().
		HandleIf(func(_ *message.Response, err error) bool {
			if pe, ok := proxyerr.As(err); ok {
				return pe.Kind == proxyerr.ResolveFail || pe.Kind == proxyerr.ConnectFail
			}
			return false
		}).
		WithMaxRetries(2).
		WithBackoff(50*time.Millisecond, 2*time.Second).
		Build()
}

// defaultBreaker builds a per-host circuit breaker: opens after 5 consecutive
// failures, needs 2 consecutive successes to fully close again,
// and stays open for 30s before probing.
func defaultBreaker() circuitbreaker.CircuitBreaker[*message.Response] {
	return circuitbreaker.NewBuilder[*message.Response]().
		HandleIf(func(_ *message.Response, err error) bool {
			if pe, ok := proxyerr.As(err); ok {
				return pe.Kind == proxyerr.ResolveFail || pe.Kind == proxyerr.ConnectFail
			}
			return false
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(30 * time.Second).
		Build()
}

func (r *Resilience) breakerFor(host string) circuitbreaker.CircuitBreaker[*message.Response] {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[host]
	if !ok {
		b = defaultBreaker()
		r.breakers[host] = b
	}
	return b
}

// Run executes fn (a single dial+forward attempt against host) under the
// retry+circuit-breaker policy. If r is nil, fn runs unwrapped.
func (r *Resilience) Run(host string, fn func() (*message.Response, error)) (*message.Response, error) {
	if r == nil {
		return fn()
	}
	breaker := r.breakerFor(host)
	return failsafe.With[*message.Response](r.retry, breaker).Get(fn)
}
