package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the workflow service.
type Metrics struct {
	ListingsSubmitted  prometheus.Counter
	ListingsPromoted   prometheus.Counter
	ListingsApproved   prometheus.Counter
	ListingsRejected   prometheus.Counter
	ListingsArchived   prometheus.Counter
	IdentitiesApproved prometheus.Counter
	IdentitiesRejected prometheus.Counter

	PrerequisiteFailures *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ListingsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_listings_submitted_total",
			Help: "Total number of listings submitted for verification",
		}),
		ListingsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_listings_promoted_total",
			Help: "Total number of gated listings promoted to in_review",
		}),
		ListingsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_listings_approved_total",
			Help: "Total number of listings approved for publication",
		}),
		ListingsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_listings_rejected_total",
			Help: "Total number of listings rejected in review",
		}),
		ListingsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_listings_archived_total",
			Help: "Total number of listings archived",
		}),
		IdentitiesApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_identities_approved_total",
			Help: "Total number of owner identities approved",
		}),
		IdentitiesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veranda_identities_rejected_total",
			Help: "Total number of owner identities rejected",
		}),
		PrerequisiteFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veranda_prerequisite_failures_total",
			Help: "Submission attempts blocked per unmet prerequisite condition",
		}, []string{"condition"}),
	}
}
