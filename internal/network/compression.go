// internal/network/compression.go
package network

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is advertised on requests that do not set their own.
const AcceptEncoding = "br, gzip, deflate"

var (
	gzipReaders = sync.Pool{New: func() any { return new(gzip.Reader) }}
	// brotli.NewReader(nil) yields a reader that is ready for Reset.
	brotliReaders = sync.Pool{New: func() any { return brotli.NewReader(nil) }}
)

// CompressionTransport negotiates compression and transparently decodes
// gzip, deflate (zlib or raw) and brotli response bodies.
type CompressionTransport struct {
	Transport http.RoundTripper
}

// NewCompressionTransport wraps next, defaulting to http.DefaultTransport.
func NewCompressionTransport(next http.RoundTripper) *CompressionTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &CompressionTransport{Transport: next}
}

func (c *CompressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	resp, err := c.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := Decompress(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp, nil
}

// decodedBody closes the decoder and the wire body together and returns
// pooled decoders on close.
type decodedBody struct {
	io.ReadCloser
	wire    io.ReadCloser
	release func()
}

func (b *decodedBody) Close() error {
	err := errors.Join(b.ReadCloser.Close(), b.wire.Close())
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return err
}

// Decompress replaces resp.Body with a decoding reader for every layer in
// Content-Encoding, outermost last. On success the encoding and length
// headers are dropped and resp.Uncompressed is set. On error the body may be
// partially consumed and the response should be discarded.
func Decompress(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	layers := resp.Header.Values("Content-Encoding")
	if len(layers) == 0 {
		return nil
	}
	var encodings []string
	for _, v := range layers {
		for _, e := range strings.Split(v, ",") {
			encodings = append(encodings, strings.ToLower(strings.TrimSpace(e)))
		}
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		var (
			reader  io.ReadCloser
			release func()
		)
		switch encodings[i] {
		case "gzip", "x-gzip":
			zr := gzipReaders.Get().(*gzip.Reader)
			if err := zr.Reset(resp.Body); err != nil {
				gzipReaders.Put(zr)
				return fmt.Errorf("gzip: %w", err)
			}
			reader = zr
			release = func() { gzipReaders.Put(zr) }
		case "deflate":
			reader = newDeflateReader(resp.Body)
		case "br":
			br := brotliReaders.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaders.Put(br)
				return fmt.Errorf("brotli: %w", err)
			}
			reader = io.NopCloser(br)
			release = func() { brotliReaders.Put(br) }
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported content encoding %q", encodings[i])
		}
		resp.Body = &decodedBody{ReadCloser: reader, wire: resp.Body, release: release}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// newDeflateReader accepts both zlib-wrapped (RFC 1950) and raw (RFC 1951)
// deflate, since servers disagree on what "deflate" means.
func newDeflateReader(r io.Reader) io.ReadCloser {
	br := bufio.NewReader(r)
	if header, err := br.Peek(2); err == nil && isZlibHeader(header) {
		if zr, err := zlib.NewReader(br); err == nil {
			return zr
		}
	}
	return flate.NewReader(br)
}

func isZlibHeader(h []byte) bool {
	// CM must be 8 (deflate) and the header checksum must divide by 31.
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}
