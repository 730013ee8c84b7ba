package mqttjson

import (
	"context"
	"encoding/json"
	"path"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	asynccalc "github.com/xizhibei/go-async-calc"
	"github.com/xizhibei/go-async-calc/compressor"
	"github.com/xizhibei/go-async-calc/mqttadapter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var (
	// ErrRetainedMessage is an error indicating that a retained request was received.
	ErrRetainedMessage = errors.New("[CALC] retained message is not allowed, please set retained=false")
)

// Server serves calculation requests received over MQTT with an engine.
type Server struct {
	engine     *asynccalc.Engine
	iotClient  mqttadapter.MQTTClientAdapter
	log        *zap.SugaredLogger
	validator  *validator.Validate
	compressor *compressor.Manager

	topicPrefix    string
	deviceID       string
	subscribeTopic string
	qos            byte
	connectIdx     int

	inflight sync.WaitGroup
}

// NewServer creates a server answering requests published under <topicPrefix>/<deviceID>/request/+.
// It keeps the client connected and resubscribes after every reconnect.
func NewServer(client mqttadapter.MQTTClientAdapter, topicPrefix, deviceID string, engine *asynccalc.Engine, validate *validator.Validate) *Server {
	s := Server{
		engine:         engine,
		iotClient:      client,
		log:            zap.S().With("module", "calc.mqttjson.server"),
		validator:      validate,
		compressor:     compressor.NewManager(),
		topicPrefix:    topicPrefix,
		deviceID:       deviceID,
		subscribeTopic: path.Join(topicPrefix, deviceID, "request", "+"),
		qos:            asynccalc.DefaultQoS,
	}

	client.EnsureConnected()

	s.connectIdx = client.OnConnect(func() {
		s.initReceive()
	})
	return &s
}

// Close stops receiving requests, waits for in-flight requests and disconnects the client.
func (s *Server) Close() error {
	s.iotClient.OffConnect(s.connectIdx)
	s.iotClient.Unsubscribe(context.Background(), s.subscribeTopic)
	s.inflight.Wait()
	s.iotClient.Disconnect()
	return nil
}

// IsConnected reports whether the server is connected to the MQTT broker.
func (s *Server) IsConnected() bool {
	return s.iotClient.IsConnected()
}

type request struct {
	Topic    string
	Encoding compressor.ContentEncoding
	Request
}

func (r *request) replyTopic(prefix, deviceID string) string {
	return path.Join(prefix, deviceID, "response", path.Base(r.Topic))
}

func (s *Server) initReceive() {
	s.iotClient.Subscribe(context.TODO(), s.subscribeTopic, s.qos, func(_ mqttadapter.MQTTClientAdapter, m mqttadapter.Message) {
		req := &request{
			Topic: m.Topic(),
		}

		if m.Retained() {
			s.log.Errorf("Retained message on %s, ignore", m.Topic())
			s.replyError(req, asynccalc.StatusClientError, CodeBadRequest, ErrRetainedMessage)
			return
		}

		if err := json.Unmarshal(m.Payload(), &req.Request); err != nil {
			s.log.Errorf("Parse json %v", err)
			s.replyError(req, asynccalc.StatusClientError, CodeBadRequest, err)
			return
		}

		s.log.Debugf("Request from topic %s, method %s", m.Topic(), req.Method)

		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.serve(req)
		}()
	})
}

func (s *Server) serve(req *request) {
	ctx := context.Background()
	if req.Metadata != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(req.Metadata))
	}

	enc, err := compressor.ParseContentEncoding(req.Metadata[MetadataContentEncoding])
	if err != nil {
		s.replyError(req, asynccalc.StatusClientError, CodeBadRequest, err)
		return
	}
	req.Encoding = enc

	op, err := asynccalc.ParseOperation(req.Method)
	if err != nil {
		s.replyError(req, asynccalc.StatusClientError, CodeBadRequest, err)
		return
	}

	var params Params
	if err := decodePayload(s.compressor, enc, req.Params, &params); err != nil {
		s.replyError(req, asynccalc.StatusClientError, CodeBadRequest, err)
		return
	}
	if err := s.validator.Struct(&params); err != nil {
		s.replyError(req, asynccalc.StatusClientError, CodeBadRequest, errors.Wrap(err, "invalid request"))
		return
	}

	result, err := s.engine.Calculate(ctx, op, *params.A, *params.B)
	if err != nil {
		s.replyError(req, asynccalc.StatusOf(err), codeOf(err), err)
		return
	}

	data, err := encodePayload(s.compressor, enc, Result{Result: result})
	if err != nil {
		s.replyError(req, asynccalc.StatusServerError, CodeInternal, err)
		return
	}
	s.reply(req, asynccalc.StatusOK, data)
}

func (s *Server) replyError(req *request, status int, code string, err error) {
	data, encErr := encodePayload(s.compressor, req.Encoding, ErrorBody{
		Message: err.Error(),
		Code:    code,
	})
	if encErr != nil {
		s.log.Errorf("Encode error response %v", encErr)
		return
	}
	s.reply(req, status, data)
}

func (s *Server) reply(req *request, status int, data json.RawMessage) {
	res := Response{
		ID:     req.ID,
		Method: req.Method,
		Status: status,
		Data:   data,
	}
	if req.Encoding != compressor.ContentEncodingPlain {
		res.Metadata = map[string]string{MetadataContentEncoding: req.Encoding.String()}
	}

	payload, err := json.Marshal(res)
	if err != nil {
		s.log.Errorf("Marshal response %v", err)
		return
	}

	topic := req.replyTopic(s.topicPrefix, s.deviceID)
	s.log.Infof("Response to topic %s, method %s [%d] size %d", topic, res.Method, status, len(payload))
	s.iotClient.PublishBytes(context.TODO(), topic, s.qos, false, payload)
}
