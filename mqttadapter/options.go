package mqttadapter

import (
	"crypto/tls"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientOptions wraps the paho client options with the adapter's own settings.
type ClientOptions struct {
	*mqtt.ClientOptions
	enableStatus  bool
	enableDebug   bool
	onlineTopic   string
	onlinePayload []byte
}

type Option func(o *ClientOptions)

func WithDebug(debug bool) Option {
	return func(o *ClientOptions) {
		o.enableDebug = debug
	}
}

func WithUserPass(user, pass string) Option {
	return func(o *ClientOptions) {
		o.SetUsername(user)
		o.SetPassword(pass)
	}
}

func WithKeepAlive(keepalive time.Duration) Option {
	return func(o *ClientOptions) {
		o.SetKeepAlive(keepalive)
	}
}

func WithConnectRetryInterval(duration time.Duration) Option {
	return func(o *ClientOptions) {
		o.SetConnectRetry(true)
		o.SetConnectRetryInterval(duration)
	}
}

func WithTlsConfig(cfg *tls.Config) Option {
	return func(o *ClientOptions) {
		o.SetTLSConfig(cfg)
	}
}

func WithWill(topic string, payload string, qos byte, retained bool) Option {
	return func(o *ClientOptions) {
		o.SetWill(topic, payload, qos, retained)
	}
}

// WithStatus publishes onlinePayload (retained) to onlineTopic on every connect
// and registers offlinePayload as the will on offlineTopic.
func WithStatus(
	onlineTopic string, onlinePayload []byte,
	offlineTopic string, offlinePayload []byte,
) Option {
	return func(o *ClientOptions) {
		o.enableStatus = true
		o.onlineTopic = onlineTopic
		o.onlinePayload = onlinePayload
		o.SetBinaryWill(offlineTopic, offlinePayload, 1, true)
	}
}

func WithMaxReconnectInterval(interval time.Duration) Option {
	return func(o *ClientOptions) {
		o.SetMaxReconnectInterval(interval)
	}
}
