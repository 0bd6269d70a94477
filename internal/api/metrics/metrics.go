// Package metrics defines and registers the custom Prometheus metrics of the
// lending API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics register with the default registry through promauto when the
// package is imported; HTTP request metrics come from echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "library"

// ── Loan metrics ──────────────────────────────────────────────────────────────

// LoansCreatedTotal counts loans committed by the ledger.
var LoansCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loans_created_total",
		Help:      "Total number of loans created.",
	},
)

// LoansReturnedTotal counts loans closed by a return.
var LoansReturnedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loans_returned_total",
		Help:      "Total number of loans returned.",
	},
)

// LoanRejectionsTotal counts ledger operations that did not commit.
// Label:
//   - reason: "book_unavailable", "already_returned", "book_not_found",
//     "user_not_found", "loan_not_found" or "store_error"
var LoanRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loan_rejections_total",
		Help:      "Total number of rejected loan creations and returns, by reason.",
	},
	[]string{"reason"},
)

// IdempotentReplaysTotal counts loan creations answered from the idempotency cache.
var IdempotentReplaysTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotent_replays_total",
		Help:      "Total number of loan creations replayed from an Idempotency-Key.",
	},
)

// Ledger reports ledger outcomes to the counters above.
type Ledger struct{}

func (Ledger) LoanCreated()  { LoansCreatedTotal.Inc() }
func (Ledger) LoanReturned() { LoansReturnedTotal.Inc() }

func (Ledger) LoanRejected(reason string) {
	LoanRejectionsTotal.WithLabelValues(reason).Inc()
}

func (Ledger) IdempotentReplay() { IdempotentReplaysTotal.Inc() }
