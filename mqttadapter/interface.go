package mqttadapter

//go:generate mockgen -source=interface.go -destination=mock/mock_mqttadapter.go

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message represents a message in the MQTT protocol.
type Message = mqtt.Message

// MessageCallback is a function type that represents a callback for handling MQTT messages.
type MessageCallback func(MQTTClientAdapter, Message)

// OnConnectCallback represents a callback function that is called when a connection is established.
type OnConnectCallback func()

// OnConnectLostCallback is called with the reason when the connection to the broker is lost.
type OnConnectLostCallback func(err error)

// MQTTClientAdapter is an interface that defines the methods for interacting with an MQTT client.
type MQTTClientAdapter interface {
	// GetMqttClient returns the underlying MQTT client.
	GetMqttClient() mqtt.Client

	// OnConnect sets a callback function to be called when the client is connected.
	// It returns an index that can be used to remove the callback using OffConnect.
	OnConnect(cb OnConnectCallback) int

	// OffConnect removes the callback function associated with the given index.
	OffConnect(idx int)

	// OnConnectLost sets a callback function to be called when the client connection is lost.
	// It returns an index that can be used to remove the callback using OffConnectLost.
	OnConnectLost(cb OnConnectLostCallback) int

	// OffConnectLost removes the callback function associated with the given index.
	OffConnectLost(idx int)

	// Connect establishes a connection to the MQTT broker.
	Connect(ctx context.Context) error

	// EnsureConnected keeps connecting in the background until the client is connected.
	EnsureConnected()

	// Disconnect disconnects the client from the MQTT broker.
	Disconnect()

	// IsConnected returns true if the client is currently connected to the MQTT broker, false otherwise.
	IsConnected() bool

	// Subscribe subscribes to a topic with the specified QoS level and message callback function.
	Subscribe(ctx context.Context, topic string, qos byte, onMsg MessageCallback)

	// SubscribeWait subscribes to a topic and waits for the broker to acknowledge the subscription.
	SubscribeWait(ctx context.Context, topic string, qos byte, onMsg MessageCallback) error

	// Unsubscribe unsubscribes from a topic.
	Unsubscribe(ctx context.Context, topic string)

	// UnsubscribeWait unsubscribes from a topic and waits for the broker to acknowledge it.
	UnsubscribeWait(ctx context.Context, topic string) error

	// PublishBytes publishes a byte array as a message to the specified topic.
	PublishBytes(ctx context.Context, topic string, qos byte, retained bool, data []byte)

	// PublishBytesWait publishes a byte array and waits for the publish to complete.
	PublishBytesWait(ctx context.Context, topic string, qos byte, retained bool, data []byte) error
}
