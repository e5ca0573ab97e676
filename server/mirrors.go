package main

import (
	"io"

	"seq-aggregator/shared/downstream"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/middleware/exchange"
)

// connectMirrors builds the optional result mirrors. A mirror that cannot be
// reached at startup is skipped; the job does not depend on it.
func connectMirrors(config *ServerConfig) ([]downstream.Forwarder, []io.Closer) {
	var mirrors []downstream.Forwarder
	var closers []io.Closer

	if config.RabbitMQ != nil {
		resultExchange, err := exchange.NewResultExchange(config.RabbitMQExchange, nil, config.RabbitMQ, rabbitMQMaxRetries)
		if err != nil {
			middleware.LogWarn(serverComponent, "RabbitMQ mirror disabled: %v", err)
		} else if err := resultExchange.DeclareExchange("fanout", true); err != nil {
			middleware.LogWarn(serverComponent, "RabbitMQ mirror disabled: %v", err)
			resultExchange.Close()
		} else {
			mirrors = append(mirrors, resultExchange)
			closers = append(closers, resultExchange)
		}
	}

	if len(config.KafkaBrokers) > 0 {
		publisher, err := downstream.NewKafkaPublisher(config.KafkaBrokers, config.KafkaTopic)
		if err != nil {
			middleware.LogWarn(serverComponent, "Kafka mirror disabled: %v", err)
		} else {
			mirrors = append(mirrors, publisher)
			closers = append(closers, publisher)
		}
	}

	for _, mirror := range mirrors {
		middleware.LogInfo(serverComponent, "Mirroring results to %s", mirror.Name())
	}
	return mirrors, closers
}
