package engine

import (
	"errors"
	"fmt"

	"github.com/tidemark/sealpost/internal/record"
)

// MutationQuota tracks admitted mutating operations per identity and
// enforces a ceiling. It is the engine's throughput throttle: both
// append-only sequences grow without bound, and the quota is the only
// defense against a single caller flooding them.
//
// Read operations never count. The counter covers the engine's lifetime,
// not a time window; a production deployment fronting this engine is
// expected to reset it by restarting or to size it generously.
type MutationQuota struct {
	limit int
	used  map[record.Identity]int
}

// NewMutationQuota creates a quota with the given per-identity limit.
// A limit of 0 or less disables enforcement.
func NewMutationQuota(limit int) *MutationQuota {
	return &MutationQuota{
		limit: limit,
		used:  make(map[record.Identity]int),
	}
}

// Admit counts one mutating operation for the identity.
// Returns *QuotaExceededError when the identity is over its limit; the
// operation that trips the limit is rejected.
func (q *MutationQuota) Admit(identity record.Identity) error {
	if q.limit <= 0 {
		return nil
	}
	q.used[identity]++
	if q.used[identity] > q.limit {
		return &QuotaExceededError{
			Identity: identity,
			Used:     q.used[identity],
			Limit:    q.limit,
		}
	}
	return nil
}

// Used returns the number of mutations counted for the identity.
func (q *MutationQuota) Used(identity record.Identity) int {
	return q.used[identity]
}

// Limit returns the per-identity ceiling.
func (q *MutationQuota) Limit() int {
	return q.limit
}

// QuotaExceededError is returned when an identity exceeds its mutation
// quota. It is an engine-level rejection, deliberately outside the core
// fault taxonomy: the operation's preconditions were never evaluated.
type QuotaExceededError struct {
	Identity record.Identity
	Used     int
	Limit    int
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("identity %s exceeded mutation quota: %d used > %d limit",
		e.Identity, e.Used, e.Limit)
}

// IsQuotaExceeded reports whether the error chain contains a
// QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
