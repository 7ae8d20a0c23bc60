package reconcile

// Outcome reports what handling one payment event did.
type Outcome string

const (
	// OutcomeCompleted is a pending purchase driven to completed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed is a pending purchase driven to failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeExpired is a pending purchase driven to expired.
	OutcomeExpired Outcome = "expired"
	// OutcomeAlreadyReconciled is a redelivery for a purchase that is
	// already terminal. No mutation, no side effects.
	OutcomeAlreadyReconciled Outcome = "already_reconciled"
	// OutcomeCreatedCompleted is a success event that arrived before the
	// pending record was persisted. The purchase is created directly in
	// completed.
	OutcomeCreatedCompleted Outcome = "created_completed"
	// OutcomeIgnoredNotFound is a failure or expiry event with no matching
	// purchase. Nothing to update.
	OutcomeIgnoredNotFound Outcome = "ignored_not_found"
	// OutcomeIgnoredMetadata is a verified success event that cannot be
	// attributed to a buyer and course. Acknowledged; redelivery cannot
	// fix missing metadata.
	OutcomeIgnoredMetadata Outcome = "ignored_metadata"
	// OutcomeIgnored is an event type the platform does not act on.
	OutcomeIgnored Outcome = "ignored"
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	return string(o)
}
