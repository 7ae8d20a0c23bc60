package enums

// PaymentEventType is the canonical event set every gateway maps onto.
type PaymentEventType string

const (
	PaymentEventChargeSucceeded PaymentEventType = "charge_succeeded"
	PaymentEventChargeFailed    PaymentEventType = "charge_failed"
	PaymentEventSessionExpired  PaymentEventType = "session_expired"
	// PaymentEventIgnored covers provider event types we do not act on.
	// They still get a 200 so the provider stops retrying.
	PaymentEventIgnored PaymentEventType = "ignored"
)

// String implements fmt.Stringer.
func (t PaymentEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t PaymentEventType) IsValid() bool {
	switch t {
	case PaymentEventChargeSucceeded, PaymentEventChargeFailed, PaymentEventSessionExpired, PaymentEventIgnored:
		return true
	}
	return false
}
