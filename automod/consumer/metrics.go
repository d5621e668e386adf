package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var framesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_gateway_messages_received",
	Help: "Number of message_create frames received from the gateway",
})

var gatewayReconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_gateway_reconnects",
	Help: "Number of times the gateway stream was re-dialed after ending",
})

var framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_gateway_messages_processed",
	Help: "Number of gateway messages handed to the engine",
})
