package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Registrations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "openchat_registrations_total",
	Help: "Number of accounts registered",
})

var Logins = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "openchat_logins_total",
	Help: "Number of login attempts",
}, []string{"result"})

var Publications = promauto.NewCounter(prometheus.CounterOpts{
	Name: "openchat_publications_total",
	Help: "Number of publications accepted",
})

var PublicationsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "openchat_publications_rejected_total",
	Help: "Number of publications rejected by moderation",
})

var Follows = promauto.NewCounter(prometheus.CounterOpts{
	Name: "openchat_follows_total",
	Help: "Number of follow relationships created",
})

var JournalEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "openchat_journal_events_total",
	Help: "Number of journal events handled, by result",
}, []string{"result"})
