package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Reconciliation counts callback and refund outcomes since process start.
type Reconciliation struct {
	CallbacksReceived Counter
	CallbacksRejected Counter
	CallbacksFailed   Counter
	PaymentsCreated   Counter
	PaymentsUpdated   Counter
	OrdersAdvanced    Counter

	RefundsSucceeded Counter
	RefundsPending   Counter
	RefundsDeclined  Counter
	RefundsFailed    Counter
}

func NewReconciliation() *Reconciliation {
	return &Reconciliation{}
}

// Snapshot returns the current counter values keyed by name.
func (r *Reconciliation) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"callbacks_received": r.CallbacksReceived.Load(),
		"callbacks_rejected": r.CallbacksRejected.Load(),
		"callbacks_failed":   r.CallbacksFailed.Load(),
		"payments_created":   r.PaymentsCreated.Load(),
		"payments_updated":   r.PaymentsUpdated.Load(),
		"orders_advanced":    r.OrdersAdvanced.Load(),
		"refunds_succeeded":  r.RefundsSucceeded.Load(),
		"refunds_pending":    r.RefundsPending.Load(),
		"refunds_declined":   r.RefundsDeclined.Load(),
		"refunds_failed":     r.RefundsFailed.Load(),
	}
}
