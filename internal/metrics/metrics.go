package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ParcelsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelhub_parcels_received_total",
		Help: "Total number of parcels received at the hub.",
	},
		[]string{"source"},
	)

	GroupsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelhub_groups_created_total",
		Help: "Total number of shipment groups created.",
	},
		[]string{"service_type"},
	)

	GroupConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parcelhub_group_conflicts_total",
		Help: "Total number of group creations lost to a concurrent request.",
	})

	PaymentsSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parcelhub_payments_settled_total",
		Help: "Total number of gateway charges settled.",
	})

	SettledAmountCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parcelhub_settled_amount_cents_total",
		Help: "Sum of settled invoice totals, in cents.",
	})

	AllocationMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parcelhub_allocation_mismatch_total",
		Help: "Total number of succeeded charges that did not reconcile with their invoices.",
	})

	ReferralRewardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parcelhub_referral_rewards_total",
		Help: "Total number of referral rewards credited.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelhub_transitions_total",
		Help: "Total number of lifecycle transitions applied.",
	},
		[]string{"entity", "status"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelhub_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	ParcelCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parcelhub_parcel_cache_items",
		Help: "Current number of items in the parcel cache.",
	})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelhub_outbox_published_total",
		Help: "Outbox tasks handed to the producer, by result.",
	},
		[]string{"topic", "result"},
	)
)
