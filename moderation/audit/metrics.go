package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auditEntryCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bailiff_audit_entries",
	Help: "Number of audit entries emitted, by delivery result",
}, []string{"result"})
