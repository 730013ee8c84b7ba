package asynccalc

const (
	StatusOK             = 200
	StatusClientError    = 400
	StatusRequestTimeout = 408
	StatusTooFrequently  = 429
	StatusServerError    = 500
)

// DefaultQoS is the MQTT QoS used for requests and responses.
const DefaultQoS byte = 0
