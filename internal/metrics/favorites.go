package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Favorites domain metrics
var (
	// ListsCreatedTotal counts lists created, by visibility and origin
	ListsCreatedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lists_created_total",
			Help:      "Total number of favorite lists created",
		},
		[]string{"visibility", "origin"}, // origin: explicit|bootstrap
	)

	// BootstrapTotal counts default-list provisioning attempts by outcome
	BootstrapTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_total",
			Help:      "Total number of default list provisioning attempts",
		},
		[]string{"outcome"}, // outcome: created|already_provisioned|error
	)

	// NameFallbacksTotal counts display-name lookups that degraded to the placeholder
	NameFallbacksTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_fallbacks_total",
			Help:      "Total number of user name lookups that fell back to the placeholder",
		},
		[]string{"reason"}, // reason: missing|error
	)

	// VersionConflictsTotal counts optimistic concurrency retries by operation
	VersionConflictsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Total number of list updates rejected by the version check",
		},
		[]string{"operation"},
	)
)
