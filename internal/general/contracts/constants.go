package contracts

// Exchanges
const (
	ExchangeBoardingTopic = "boarding_topic"
	ExchangeVehicleFanout = "vehicle_fanout"
)

// Queues
const (
	QueueBoardingConfirmed = "boarding_confirmed"
	QueueVehicleLiveFeed   = "vehicle_live_feed"
)

// Routing patterns
const (
	RouteBoardingConfirmedPrefix = "boarding.confirmed." // {line_id}
	RouteBoardingRequestedPrefix = "boarding.requested." // {line_id}
)

// Producers
const (
	ProducerBoardingService  = "boarding-service"
	ProducerTelemetryService = "telemetry-service"
)
