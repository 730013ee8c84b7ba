package mqttadapter

import (
	"context"
	"crypto/tls"
	stdlog "log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// MQTTClientAdapterImpl represents an MQTT client.
type MQTTClientAdapterImpl struct {
	client        mqtt.Client
	clientOptions *ClientOptions

	onConnectCallbackCount     int
	onConnectCallbackMutex     sync.Mutex
	onConnectCallbacks         map[int]OnConnectCallback
	onConnectLostCallbackCount int
	onConnectLostCallbackMutex sync.Mutex
	onConnectLostCallbacks     map[int]OnConnectLostCallback

	stopRetryConnect atomic.Bool
	retryInterval    time.Duration
	printableURL     string

	log *zap.SugaredLogger
}

// New creates a new MQTT client adapter for the broker at uri.
// The URI should be in the format "scheme://[user:pass@]host:port", where scheme can be "tcp" or "ssl".
// The client does not connect until Connect or EnsureConnected is called.
func New(uri, clientID string, options ...Option) (MQTTClientAdapter, error) {
	server, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse broker uri")
	}

	log := zap.S().With("module", "calc.mqtt")

	clonedServer := *server
	clonedServer.User = nil
	client := &MQTTClientAdapterImpl{
		log:                    log,
		printableURL:           clonedServer.String(),
		retryInterval:          10 * time.Second,
		onConnectCallbacks:     make(map[int]OnConnectCallback),
		onConnectLostCallbacks: make(map[int]OnConnectLostCallback),
	}

	mqttClientOptions := mqtt.NewClientOptions().
		AddBroker(uri).
		SetClientID(clientID).
		SetKeepAlive(60 * time.Second).
		SetTLSConfig(&tls.Config{}).
		SetOrderMatters(false).
		SetDefaultPublishHandler(func(c mqtt.Client, m mqtt.Message) {
			log.Infof("DefaultPublishHandler %s len=%d", m.Topic(), len(m.Payload()))
		}).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Infof("Connected %s", client.printableURL)
			for _, cb := range client.connectCallbacks() {
				go cb()
			}
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Infof("Connection lost %s %v", client.printableURL, err)
			for _, cb := range client.connectLostCallbacks() {
				go cb(err)
			}
		})

	if server.User != nil {
		mqttClientOptions.SetUsername(server.User.Username())
		if pass, ok := server.User.Password(); ok {
			mqttClientOptions.SetPassword(pass)
		}
	}

	clientOptions := &ClientOptions{
		ClientOptions: mqttClientOptions,
	}

	for _, o := range options {
		o(clientOptions)
	}

	client.client = mqtt.NewClient(clientOptions.ClientOptions)

	if clientOptions.enableStatus {
		client.OnConnect(func() {
			client.PublishBytes(
				context.Background(),
				clientOptions.onlineTopic,
				1,
				true,
				clientOptions.onlinePayload,
			)
		})
	}

	if clientOptions.enableDebug {
		mqtt.DEBUG = stdlog.New(os.Stderr, "DEBUG - ", stdlog.LstdFlags)
		mqtt.CRITICAL = stdlog.New(os.Stderr, "CRITICAL - ", stdlog.LstdFlags)
		mqtt.WARN = stdlog.New(os.Stderr, "WARN - ", stdlog.LstdFlags)
		mqtt.ERROR = stdlog.New(os.Stderr, "ERROR - ", stdlog.LstdFlags)
	}

	client.clientOptions = clientOptions

	return client, nil
}

// GetMqttClient returns the MQTT client associated with the adapter.
func (s *MQTTClientAdapterImpl) GetMqttClient() mqtt.Client {
	return s.client
}

func (s *MQTTClientAdapterImpl) connectCallbacks() []OnConnectCallback {
	s.onConnectCallbackMutex.Lock()
	defer s.onConnectCallbackMutex.Unlock()

	cbs := make([]OnConnectCallback, 0, len(s.onConnectCallbacks))
	for _, cb := range s.onConnectCallbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

func (s *MQTTClientAdapterImpl) connectLostCallbacks() []OnConnectLostCallback {
	s.onConnectLostCallbackMutex.Lock()
	defer s.onConnectLostCallbackMutex.Unlock()

	cbs := make([]OnConnectLostCallback, 0, len(s.onConnectLostCallbacks))
	for _, cb := range s.onConnectLostCallbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

// OnConnect registers a callback function to be called every time the client connects.
// The callback is invoked immediately as well if the client is already connected.
// It returns an index that can be passed to OffConnect.
func (s *MQTTClientAdapterImpl) OnConnect(cb OnConnectCallback) int {
	if s.client.IsConnected() {
		cb()
	}

	s.onConnectCallbackMutex.Lock()
	defer s.onConnectCallbackMutex.Unlock()

	idx := s.onConnectCallbackCount
	s.onConnectCallbackCount++
	s.onConnectCallbacks[idx] = cb
	return idx
}

// OffConnect removes the onConnect callback function associated with the given index.
func (s *MQTTClientAdapterImpl) OffConnect(idx int) {
	s.onConnectCallbackMutex.Lock()
	defer s.onConnectCallbackMutex.Unlock()

	delete(s.onConnectCallbacks, idx)
}

// OnConnectLost registers a callback function to be called when the client loses connection.
// It returns an index that can be passed to OffConnectLost.
func (s *MQTTClientAdapterImpl) OnConnectLost(cb OnConnectLostCallback) int {
	s.onConnectLostCallbackMutex.Lock()
	defer s.onConnectLostCallbackMutex.Unlock()

	idx := s.onConnectLostCallbackCount
	s.onConnectLostCallbackCount++
	s.onConnectLostCallbacks[idx] = cb
	return idx
}

// OffConnectLost removes the onConnectLost callback function associated with the given index.
func (s *MQTTClientAdapterImpl) OffConnectLost(idx int) {
	s.onConnectLostCallbackMutex.Lock()
	defer s.onConnectLostCallbackMutex.Unlock()

	delete(s.onConnectLostCallbacks, idx)
}

func (s *MQTTClientAdapterImpl) Connect(ctx context.Context) error {
	return waitToken(ctx, s.client.Connect())
}

// EnsureConnected starts a goroutine that connects to the broker, retrying until it succeeds.
func (s *MQTTClientAdapterImpl) EnsureConnected() {
	go s.connectAndWaitForSuccess()
}

func (s *MQTTClientAdapterImpl) connectAndWaitForSuccess() {
	ctx := context.Background()
	for !s.stopRetryConnect.Load() {
		if s.IsConnected() {
			s.log.Infof("mqtt is connected %s", s.printableURL)
			return
		}
		err := s.Connect(ctx)
		if err == nil {
			return
		}
		s.log.Errorf("Connect failed %s %v", s.printableURL, err)
		time.Sleep(s.retryInterval)
		s.log.Infof("Try reconnect %s", s.printableURL)
	}
	s.log.Infof("Stop retry connect %s", s.printableURL)
}

// Disconnect stops connection retries and disconnects from the broker,
// waiting at most one second for in-flight work.
func (s *MQTTClientAdapterImpl) Disconnect() {
	s.stopRetryConnect.Store(true)
	s.client.Disconnect(1000)
}

// IsConnected reports whether the connection to the broker is open.
func (s *MQTTClientAdapterImpl) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

func (s *MQTTClientAdapterImpl) wrap(onMsg MessageCallback) mqtt.MessageHandler {
	return func(c mqtt.Client, m mqtt.Message) {
		onMsg(s, m)
	}
}

// Subscribe subscribes to a topic and routes incoming messages to onMsg.
func (s *MQTTClientAdapterImpl) Subscribe(ctx context.Context, topic string, qos byte, onMsg MessageCallback) {
	s.log.Debugf("Subscribe topic=%s qos=%d", topic, qos)
	s.client.Subscribe(topic, qos, s.wrap(onMsg))
}

// SubscribeWait subscribes to a topic and waits until the broker acknowledges it or ctx is done.
func (s *MQTTClientAdapterImpl) SubscribeWait(ctx context.Context, topic string, qos byte, onMsg MessageCallback) error {
	s.log.Debugf("Subscribe topic=%s qos=%d", topic, qos)
	return waitToken(ctx, s.client.Subscribe(topic, qos, s.wrap(onMsg)))
}

// Unsubscribe unsubscribes from the specified topic.
func (s *MQTTClientAdapterImpl) Unsubscribe(ctx context.Context, topic string) {
	s.log.Debugf("Unsubscribe topic=%s", topic)
	s.client.Unsubscribe(topic)
}

// UnsubscribeWait unsubscribes from a topic and waits until the broker acknowledges it or ctx is done.
func (s *MQTTClientAdapterImpl) UnsubscribeWait(ctx context.Context, topic string) error {
	s.log.Debugf("Unsubscribe topic=%s", topic)
	return waitToken(ctx, s.client.Unsubscribe(topic))
}

// PublishBytes publishes data to topic without waiting for delivery.
func (s *MQTTClientAdapterImpl) PublishBytes(ctx context.Context, topic string, qos byte, retained bool, data []byte) {
	s.client.Publish(topic, qos, retained, data)
}

// PublishBytesWait publishes data to topic and waits until the publish completes or ctx is done.
func (s *MQTTClientAdapterImpl) PublishBytesWait(ctx context.Context, topic string, qos byte, retained bool, data []byte) error {
	return waitToken(ctx, s.client.Publish(topic, qos, retained, data))
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
