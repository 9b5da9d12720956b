package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsim_emails_sent_total",
			Help: "Total simulated phishing emails delivered to the relay",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsim_email_failures_total",
			Help: "Total emails marked failed by a send task",
		},
	)

	EmailCreateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsim_email_create_failures_total",
			Help: "Total recipients whose email record could not be created",
		},
	)

	SendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phishsim_send_duration_seconds",
			Help:    "Time spent handing one email to the relay",
			Buckets: prometheus.DefBuckets,
		},
	)

	CampaignsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsim_campaigns_started_total",
			Help: "Total campaigns created and dispatched",
		},
	)

	CampaignRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsim_campaign_rollbacks_total",
			Help: "Total campaigns deleted because dispatch setup failed",
		},
	)

	Interactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsim_interactions_total",
			Help: "Inbound tracking interactions by kind",
		},
		[]string{"kind"},
	)

	TrackingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsim_tracking_failures_total",
			Help: "Tracking errors swallowed at the boundary",
		},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(EmailCreateFailures)
	prometheus.MustRegister(SendDuration)
	prometheus.MustRegister(CampaignsStarted)
	prometheus.MustRegister(CampaignRollbacks)
	prometheus.MustRegister(Interactions)
	prometheus.MustRegister(TrackingFailures)
}
