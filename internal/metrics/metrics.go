package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telechat_online_conns",
		Help: "Current websocket connections on this instance.",
	})

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_messages_sent_total",
		Help: "Total messages persisted by this instance.",
	})
	MessagesDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_messages_deduped_total",
		Help: "Total sends dropped as idempotency-key duplicates.",
	})

	BrokerPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_broker_published_total",
		Help: "Total wrappers published to the broker channel.",
	})
	BrokerDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_broker_delivered_total",
		Help: "Total wrappers delivered to a local connection.",
	})
	BrokerDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_broker_discarded_total",
		Help: "Total wrappers discarded because the recipient is not local.",
	})
	BrokerMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_broker_malformed_total",
		Help: "Total broker payloads dropped as malformed.",
	})

	PresenceBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telechat_presence_broadcasts_total",
		Help: "Total presence events fanned out to friends.",
	})
)

func Register() {
	prometheus.MustRegister(
		OnlineConns,
		MessagesSent, MessagesDeduped,
		BrokerPublished, BrokerDelivered, BrokerDiscarded, BrokerMalformed,
		PresenceBroadcasts,
	)
}
