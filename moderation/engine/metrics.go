package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "bailiff_event_duration_sec",
	Help: "Total duration of event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bailiff_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bailiff_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var commandOutcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bailiff_command_outcomes",
	Help: "Number of moderator commands handled, by kind and outcome",
}, []string{"kind", "status"})

var rolesRecordedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bailiff_tracked_roles_recorded",
	Help: "Number of tracked roles recorded when members left",
})

var rolesRestoredCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bailiff_tracked_roles_restored",
	Help: "Number of tracked roles re-applied when members rejoined",
})

var scheduledDeleteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bailiff_scheduled_deletes",
	Help: "Number of scheduled transient message deletions, by result",
}, []string{"result"})
