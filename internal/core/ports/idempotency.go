package ports

import "context"

// IdempotencyStore records which loan a client-supplied key produced. A key is
// claimed before the loan is written, so retries racing on the same key
// cannot both lend a copy.
type IdempotencyStore interface {
	// Claim reserves key for the caller and reports claimed=true. Otherwise
	// loanID holds the loan an earlier request produced, or is empty while
	// that request is still running.
	Claim(ctx context.Context, key string) (loanID string, claimed bool, err error)
	// Complete binds a claimed key to the loan it produced.
	Complete(ctx context.Context, key, loanID string) error
	// Release drops a claim whose request failed so the client may retry.
	Release(ctx context.Context, key string) error
}
