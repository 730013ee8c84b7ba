package mqttjson

import (
	"context"
	"encoding/json"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	asynccalc "github.com/xizhibei/go-async-calc"
	"github.com/xizhibei/go-async-calc/compressor"
	"github.com/xizhibei/go-async-calc/mqttadapter"
	"github.com/xizhibei/go-async-calc/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrClientIsNotReady = errors.New("[CALC] client is not ready")
	ErrMismatchedReply  = errors.New("[CALC] reply does not match request")
)

// CallError is a non-OK response returned by the server.
type CallError struct {
	Status  int
	Code    string
	Message string
}

func (e *CallError) Error() string {
	return e.Message
}

// asError marks the call error with the engine sentinel matching its code,
// so errors.Is works across the wire.
func (e *CallError) asError() error {
	switch e.Code {
	case CodeDivisionByZero:
		return errors.Mark(e, asynccalc.ErrDivisionByZero)
	case CodeTimeout:
		return errors.Mark(e, asynccalc.ErrTimeout)
	case CodeTooFrequently:
		return errors.Mark(e, asynccalc.ErrTooFrequently)
	default:
		return e
	}
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(c *Client)

// WithContentEncoding compresses request params with enc.
func WithContentEncoding(enc compressor.ContentEncoding) ClientOption {
	return func(c *Client) {
		c.encoding = enc
	}
}

// WithQoS sets the QoS used for requests and response subscriptions.
func WithQoS(qos byte) ClientOption {
	return func(c *Client) {
		c.qos = qos
	}
}

// Client sends calculation requests over MQTT.
// The caller owns the connection of the underlying adapter.
type Client struct {
	mqttClient  mqttadapter.MQTTClientAdapter
	log         *zap.SugaredLogger
	telemetry   *telemetry.Telemetry
	compressor  *compressor.Manager
	encoding    compressor.ContentEncoding
	topicPrefix string
	qos         byte
	seq         atomic.Uint64
}

func NewClient(client mqttadapter.MQTTClientAdapter, topicPrefix string, options ...ClientOption) *Client {
	c := Client{
		mqttClient:  client,
		topicPrefix: topicPrefix,
		telemetry:   telemetry.NewNoop(),
		compressor:  compressor.NewManager(),
		encoding:    compressor.ContentEncodingPlain,
		qos:         asynccalc.DefaultQoS,
		log:         zap.S().With("module", "calc.mqttjson.client"),
	}

	for _, o := range options {
		o(&c)
	}

	return &c
}

// SetTelemetry sets the telemetry for the client
func (c *Client) SetTelemetry(tel *telemetry.Telemetry) {
	c.telemetry = tel
}

func (c *Client) IsConnected() bool {
	return c.mqttClient.IsConnected()
}

func (c *Client) Close() error {
	c.mqttClient.Disconnect()
	return nil
}

// Call sends method with params to the device targetID and decodes the result into reply.
// It blocks until the response arrives or ctx is done.
func (c *Client) Call(ctx context.Context, targetID, method string, params interface{}, reply interface{}) (err error) {
	var span trace.Span
	ctx, span = c.telemetry.StartSpan(ctx, "Calc.Client.Call "+method)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !c.mqttClient.IsConnected() {
		return ErrClientIsNotReady
	}

	id := uuid.NewString()
	requestTopic := path.Join(c.topicPrefix, targetID, "request", id)
	responseTopic := path.Join(c.topicPrefix, targetID, "response", id)

	req := Request{
		ID:       c.seq.Inc(),
		Method:   method,
		Metadata: map[string]string{},
	}
	if c.encoding != compressor.ContentEncodingPlain {
		req.Metadata[MetadataContentEncoding] = c.encoding.String()
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(req.Metadata))

	req.Params, err = encodePayload(c.compressor, c.encoding, params)
	if err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	resCh := make(chan []byte, 1)
	err = c.mqttClient.SubscribeWait(ctx, responseTopic, c.qos, func(_ mqttadapter.MQTTClientAdapter, m mqttadapter.Message) {
		c.log.Debugf("Receive data from %s len=%d", m.Topic(), len(m.Payload()))
		select {
		case resCh <- m.Payload():
		default:
		}
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", responseTopic)
	}
	defer c.mqttClient.Unsubscribe(context.Background(), responseTopic)

	c.log.Debugf("Send data to %s len=%d", requestTopic, len(data))
	if err := c.mqttClient.PublishBytesWait(ctx, requestTopic, c.qos, false, data); err != nil {
		return errors.Wrapf(err, "publish %s", requestTopic)
	}

	select {
	case payload := <-resCh:
		return c.handleResponse(&req, payload, reply)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) handleResponse(req *Request, payload []byte, reply interface{}) error {
	var res Response
	if err := json.Unmarshal(payload, &res); err != nil {
		return errors.Wrap(err, "unmarshal response")
	}
	if res.ID != req.ID || res.Method != req.Method {
		return errors.Wrapf(ErrMismatchedReply, "sent %d %s, got %d %s", req.ID, req.Method, res.ID, res.Method)
	}

	enc, err := compressor.ParseContentEncoding(res.Metadata[MetadataContentEncoding])
	if err != nil {
		return err
	}

	if res.Status != asynccalc.StatusOK {
		var body ErrorBody
		if err := decodePayload(c.compressor, enc, res.Data, &body); err != nil {
			return errors.Wrapf(err, "status %d", res.Status)
		}
		callErr := &CallError{
			Status:  res.Status,
			Code:    body.Code,
			Message: body.Message,
		}
		return callErr.asError()
	}

	return decodePayload(c.compressor, enc, res.Data, reply)
}

// Remote is an asynccalc.Service backed by the engine of a remote device.
type Remote struct {
	client   *Client
	targetID string
}

var _ asynccalc.Service = (*Remote)(nil)

// NewRemote returns a service that sends every calculation to targetID through client.
func NewRemote(client *Client, targetID string) *Remote {
	return &Remote{
		client:   client,
		targetID: targetID,
	}
}

func (r *Remote) call(ctx context.Context, op asynccalc.Operation, a, b float64) (float64, error) {
	var res Result
	if err := r.client.Call(ctx, r.targetID, op.String(), NewParams(a, b), &res); err != nil {
		return 0, err
	}
	return res.Result, nil
}

func (r *Remote) Add(ctx context.Context, a, b float64) (float64, error) {
	return r.call(ctx, asynccalc.OpAdd, a, b)
}

func (r *Remote) Sub(ctx context.Context, a, b float64) (float64, error) {
	return r.call(ctx, asynccalc.OpSub, a, b)
}

func (r *Remote) Mul(ctx context.Context, a, b float64) (float64, error) {
	return r.call(ctx, asynccalc.OpMul, a, b)
}

func (r *Remote) Div(ctx context.Context, a, b float64) (float64, error) {
	return r.call(ctx, asynccalc.OpDiv, a, b)
}
