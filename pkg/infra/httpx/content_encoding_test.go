package httpx

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipCompress(data []byte) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write(data)
	_ = gz.Close()
	return buf.Bytes()
}

func brCompress(data []byte) []byte {
	var buf bytes.Buffer
	br := brotli.NewWriter(&buf)
	_, _ = br.Write(data)
	_ = br.Close()
	return buf.Bytes()
}

func zstdCompress(data []byte) []byte {
	var buf bytes.Buffer
	zw, _ := zstd.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func rawDeflateCompress(data []byte) []byte {
	var buf bytes.Buffer
	dw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	_, _ = dw.Write(data)
	_ = dw.Close()
	return buf.Bytes()
}

func decodeAll(t *testing.T, body []byte, encoding string) ([]byte, bool) {
	t.Helper()
	decoded, err := NewDecodingReader(bytes.NewReader(body), encoding)
	require.NoError(t, err)
	defer decoded.Close()
	out, err := io.ReadAll(decoded)
	require.NoError(t, err)
	return out, decoded.Encoded
}

func TestNewDecodingReader(t *testing.T) {
	plain := []byte("%PDF-1.7 uploaded document")

	tests := []struct {
		name     string
		body     []byte
		encoding string
		encoded  bool
	}{
		{"none", plain, "", false},
		{"identity", plain, "identity", false},
		{"gzip", gzipCompress(plain), "gzip", true},
		{"brotli", brCompress(plain), "br", true},
		{"zstd", zstdCompress(plain), "zstd", true},
		{"deflate zlib", zlibCompress(plain), "deflate", true},
		{"deflate raw", rawDeflateCompress(plain), "deflate", true},
		{"chained", brCompress(gzipCompress(plain)), "gzip, br", true},
		{"case and whitespace", gzipCompress(plain), "  GZip  ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, encoded := decodeAll(t, tt.body, tt.encoding)
			assert.Equal(t, plain, out)
			assert.Equal(t, tt.encoded, encoded)
		})
	}
}

func TestNewDecodingReader_Unsupported(t *testing.T) {
	for _, enc := range []string{"compress", "foo", "gzip, lzma"} {
		_, err := NewDecodingReader(bytes.NewReader([]byte("abc")), enc)
		assert.ErrorIs(t, err, ErrUnsupportedEncoding, enc)
	}
}

func TestNewDecodingReader_CorruptGzip(t *testing.T) {
	_, err := NewDecodingReader(bytes.NewReader([]byte("not gzip")), "gzip")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedEncoding)
}
