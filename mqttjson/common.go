package mqttjson

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
	asynccalc "github.com/xizhibei/go-async-calc"
	"github.com/xizhibei/go-async-calc/compressor"
)

// MetadataContentEncoding is the metadata key naming the encoding of params and data.
const MetadataContentEncoding = "content-encoding"

// Error codes carried in error responses.
const (
	CodeDivisionByZero = "division_by_zero"
	CodeBadRequest     = "bad_request"
	CodeTimeout        = "timeout"
	CodeTooFrequently  = "too_frequently"
	CodeInternal       = "internal"
)

// Request represents a JSON calculation request.
type Request struct {
	ID       uint64            `json:"id"`
	Method   string            `json:"method"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Params   json.RawMessage   `json:"params"`
}

// Response represents a JSON calculation response.
type Response struct {
	ID       uint64            `json:"id"`
	Method   string            `json:"method"`
	Status   int               `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     json.RawMessage   `json:"data"`
}

// Params holds the operands of a request. Both are required; zero is a valid value.
type Params struct {
	A *float64 `json:"a" validate:"required"`
	B *float64 `json:"b" validate:"required"`
}

// NewParams returns params for the operands a and b.
func NewParams(a, b float64) *Params {
	return &Params{A: &a, B: &b}
}

// Result is the data of a successful response.
type Result struct {
	Result float64 `json:"result"`
}

// ErrorBody is the data of an error response.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, asynccalc.ErrDivisionByZero):
		return CodeDivisionByZero
	case errors.Is(err, asynccalc.ErrUnknownOperation):
		return CodeBadRequest
	case errors.Is(err, asynccalc.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, asynccalc.ErrTooFrequently):
		return CodeTooFrequently
	default:
		return CodeInternal
	}
}

// encodePayload marshals v and compresses it with enc.
// Compressed payloads travel as base64 JSON strings.
func encodePayload(m *compressor.Manager, enc compressor.ContentEncoding, v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	if enc == compressor.ContentEncodingPlain {
		return data, nil
	}

	compressed, err := m.Compress(enc, data)
	if err != nil {
		return nil, errors.Wrapf(err, "compress payload with %s", enc)
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(compressed))
}

// decodePayload reverses encodePayload into v.
func decodePayload(m *compressor.Manager, enc compressor.ContentEncoding, raw json.RawMessage, v interface{}) error {
	if enc != compressor.ContentEncodingPlain {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return errors.Wrap(err, "compressed payload must be a base64 string")
		}
		compressed, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return errors.Wrap(err, "decode base64 payload")
		}
		raw, err = m.Uncompress(enc, compressed)
		if err != nil {
			return errors.Wrapf(err, "uncompress payload with %s", enc)
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "unmarshal payload")
	}
	return nil
}
