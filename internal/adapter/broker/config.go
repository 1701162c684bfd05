// Package broker is the AMQP client library shared by the scheduler and the
// workers. It fixes the exchange topology at design time and exposes two role
// abstractions: Publisher and Subscriber. One connection is opened per
// process; every role owns its own channel.
package broker

// ExchangeConfig describes one of the three fixed exchanges.
type ExchangeConfig struct {
	Name    string
	Kind    string
	Durable bool
}

var (
	// JobExchange fans scheduler jobs out to worker queues by topic.
	JobExchange = ExchangeConfig{Name: "job_exchange", Kind: "topic", Durable: true}
	// ResultExchange carries worker results back to the scheduler.
	ResultExchange = ExchangeConfig{Name: "result_exchange", Kind: "direct", Durable: true}
	// StatusExchange carries lifecycle/heartbeat/job status updates.
	StatusExchange = ExchangeConfig{Name: "status_exchange", Kind: "direct", Durable: true}
)

// Routing keys on the direct exchanges.
const (
	ResultRoutingKey = "worker_result"
	StatusRoutingKey = "worker_status"
)

// PublisherConfig binds a publisher to an exchange; RoutingKey is the
// default key for roles that always publish to the same binding.
type PublisherConfig struct {
	Exchange   ExchangeConfig
	RoutingKey string
}

// SubscriberConfig binds a subscriber queue to an exchange. Durable queues
// are client-named and survive restarts; transient queues auto-delete.
type SubscriberConfig struct {
	Exchange    ExchangeConfig
	QueueName   string
	RoutingKeys []string
	Durable     bool
}

// JobPublisherConfig is used by the scheduler; the routing key is chosen
// per job at publish time.
func JobPublisherConfig() PublisherConfig {
	return PublisherConfig{Exchange: JobExchange}
}

// ResultPublisherConfig is used by workers to report results.
func ResultPublisherConfig() PublisherConfig {
	return PublisherConfig{Exchange: ResultExchange, RoutingKey: ResultRoutingKey}
}

// StatusPublisherConfig is used by workers to report status.
func StatusPublisherConfig() PublisherConfig {
	return PublisherConfig{Exchange: StatusExchange, RoutingKey: StatusRoutingKey}
}

// JobSubscriberConfig is used by a worker: the queue carries the worker's
// name and is transient so a dead worker's backlog is dropped.
func JobSubscriberConfig(queueName string, topics []string) SubscriberConfig {
	return SubscriberConfig{Exchange: JobExchange, QueueName: queueName, RoutingKeys: topics, Durable: false}
}

// ResultSubscriberConfig is the scheduler's durable result queue.
func ResultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{Exchange: ResultExchange, QueueName: "result_queue", RoutingKeys: []string{ResultRoutingKey}, Durable: true}
}

// StatusSubscriberConfig is the scheduler's durable status queue.
func StatusSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{Exchange: StatusExchange, QueueName: "status_queue", RoutingKeys: []string{StatusRoutingKey}, Durable: true}
}
