package httpx

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

var ErrUnsupportedEncoding = errors.New("unsupported content-encoding")

// DecodedBody streams a body through every decoder named in its
// Content-Encoding. Close releases the decoders, not the source.
type DecodedBody struct {
	io.Reader
	Encoded bool
	closers []func() error
}

func (d *DecodedBody) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

// NewDecodingReader decodes chained encodings (e.g. "gzip, br") in reverse
// order. Supported: br, gzip, zstd, deflate (zlib wrapped or raw) and
// identity.
func NewDecodingReader(r io.Reader, contentEncoding string) (*DecodedBody, error) {
	body := &DecodedBody{Reader: r}
	if strings.TrimSpace(contentEncoding) == "" {
		return body, nil
	}

	encodings := strings.Split(contentEncoding, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		enc := strings.TrimSpace(strings.ToLower(encodings[i]))
		switch enc {
		case "", "identity":
			continue
		case "br":
			body.Reader = brotli.NewReader(body.Reader)
		case "gzip", "x-gzip":
			gr, err := gzip.NewReader(body.Reader)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("invalid gzip body: %w", err)
			}
			body.Reader = gr
			body.closers = append(body.closers, gr.Close)
		case "zstd":
			dec, err := zstd.NewReader(body.Reader)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("invalid zstd body: %w", err)
			}
			body.Reader = dec
			body.closers = append(body.closers, func() error {
				dec.Close()
				return nil
			})
		case "deflate":
			rc, err := deflateReader(body.Reader)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("invalid deflate body: %w", err)
			}
			body.Reader = rc
			body.closers = append(body.closers, rc.Close)
		default:
			_ = body.Close()
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
		}
		body.Encoded = true
	}
	return body, nil
}

// deflateReader accepts the zlib wrapped form and falls back to raw DEFLATE
// when the first two bytes are not a zlib header.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(h []byte) bool {
	cmf, flg := h[0], h[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
