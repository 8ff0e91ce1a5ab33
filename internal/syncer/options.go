package syncer

const defaultFailureBuffer = 16

// Option configures a Syncer.
type Option func(*Syncer)

// WithFailureHandler registers fn to receive every failure, in addition
// to the Failures channel. fn runs on the goroutine that hit the failure
// and must not block.
func WithFailureHandler(fn func(error)) Option {
	return func(s *Syncer) {
		s.onFailure = fn
	}
}

// WithFailureBuffer sets the capacity of the Failures channel. Failures
// that do not fit are dropped from the channel, never blocking the hook.
func WithFailureBuffer(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.failures = make(chan error, n)
		}
	}
}
