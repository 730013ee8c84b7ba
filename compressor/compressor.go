package compressor

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/errors"
)

// ContentEncoding identifies how a payload is compressed.
type ContentEncoding int

const (
	ContentEncodingPlain ContentEncoding = iota
	ContentEncodingGzip
	ContentEncodingDeflate
	ContentEncodingBrotli
)

var (
	ErrUnknownContentEncoding = errors.New("[CALC] unknown content encoding")
)

var encodingNames = map[ContentEncoding]string{
	ContentEncodingPlain:   "identity",
	ContentEncodingGzip:    "gzip",
	ContentEncodingDeflate: "deflate",
	ContentEncodingBrotli:  "br",
}

// String returns the metadata name of the encoding.
func (e ContentEncoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return "unknown"
}

// ParseContentEncoding returns the encoding with the given metadata name.
// An empty name means plain.
func ParseContentEncoding(name string) (ContentEncoding, error) {
	if name == "" {
		return ContentEncodingPlain, nil
	}
	for e, n := range encodingNames {
		if n == name {
			return e, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownContentEncoding, "%q", name)
}

type resetWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// Manager compresses and uncompresses payloads, pooling its writers and buffers.
type Manager struct {
	byteReaderPool   sync.Pool
	bufferPool       sync.Pool
	gzipWriterPool   sync.Pool
	zlibWriterPool   sync.Pool
	brotliWriterPool sync.Pool
}

func NewManager() *Manager {
	return &Manager{
		byteReaderPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewReader(nil)
			},
		},
		gzipWriterPool: sync.Pool{
			New: func() interface{} {
				return gzip.NewWriter(nil)
			},
		},
		zlibWriterPool: sync.Pool{
			New: func() interface{} {
				return zlib.NewWriter(nil)
			},
		},
		brotliWriterPool: sync.Pool{
			New: func() interface{} {
				return brotli.NewWriter(nil)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

func (m *Manager) Compress(tp ContentEncoding, data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	switch tp {
	case ContentEncodingGzip:
		return m.compress(&m.gzipWriterPool, data)
	case ContentEncodingDeflate:
		return m.compress(&m.zlibWriterPool, data)
	case ContentEncodingBrotli:
		return m.compress(&m.brotliWriterPool, data)
	case ContentEncodingPlain:
		return data, nil
	default:
		return nil, ErrUnknownContentEncoding
	}
}

func (m *Manager) Uncompress(tp ContentEncoding, data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	byteReader := m.byteReaderPool.Get().(*bytes.Reader)
	defer m.byteReaderPool.Put(byteReader)
	byteReader.Reset(data)

	var reader io.Reader
	switch tp {
	case ContentEncodingGzip:
		r, err := gzip.NewReader(byteReader)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer r.Close()
		reader = r
	case ContentEncodingDeflate:
		r, err := zlib.NewReader(byteReader)
		if err != nil {
			return nil, errors.Wrap(err, "deflate")
		}
		defer r.Close()
		reader = r
	case ContentEncodingBrotli:
		reader = brotli.NewReader(byteReader)
	case ContentEncodingPlain:
		return data, nil
	default:
		return nil, ErrUnknownContentEncoding
	}

	return io.ReadAll(reader)
}

func (m *Manager) compress(pool *sync.Pool, data []byte) ([]byte, error) {
	writer := pool.Get().(resetWriter)
	defer pool.Put(writer)

	buf := m.bufferPool.Get().(*bytes.Buffer)
	defer m.bufferPool.Put(buf)

	buf.Reset()
	writer.Reset(buf)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool, so hand out a copy.
	return bytes.Clone(buf.Bytes()), nil
}
