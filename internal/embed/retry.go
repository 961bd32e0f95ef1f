package embed

import "time"

// RetryPolicy configures rate-limit retry behavior for embedding batches.
// It is threaded through the vectorizer call explicitly so tests can inject
// a fake backend and a fake clock.
type RetryPolicy struct {
	// MaxAttempts is the number of attempts per batch, including the first.
	MaxAttempts int

	// BaseDelay is the pause before the first retry after a rate-limit hit.
	BaseDelay time.Duration

	// Step is added to the pause after every rate-limit hit within the run.
	// The pause is run-scoped: it keeps growing across batches and never
	// resets, so a run that keeps hitting the limit slows down overall.
	Step time.Duration
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Step:        500 * time.Millisecond,
	}
}

// backoff holds the run-scoped rate-limit pause.
type backoff struct {
	policy RetryPolicy
	delay  time.Duration
	sleep  func(time.Duration)
}

func newBackoff(policy RetryPolicy, sleep func(time.Duration)) *backoff {
	return &backoff{policy: policy, delay: policy.BaseDelay, sleep: sleep}
}

// wait pauses for the current delay and grows it by the policy step.
func (b *backoff) wait() {
	b.sleep(b.delay)
	b.delay += b.policy.Step
}
