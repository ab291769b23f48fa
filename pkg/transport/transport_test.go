package transport

import (
	"bytes"
	"compress/gzip"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/richard-senior/mvreg/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seasonsCSV = "full,avg_mv,total_mv,pos,pts\nArsenal,1,2,3,4\n"

func TestStreamTransportReadsConcatenatedRequests(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}{"jsonrpc":"2.0","id":2,"method":"initialize"}
		{"jsonrpc":"2.0","id":3}`)
	tr := NewStreamTransport(in, io.Discard)

	req, err := tr.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "tools/list", req.Method)

	req, err = tr.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "initialize", req.Method)

	// parses as JSON but has no method
	_, err = tr.ReadRequest()
	var rpcErr *protocol.JsonRpcError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, protocol.ErrInvalidRequest, rpcErr.Code)

	_, err = tr.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamTransportWritesOneLinePerResponse(t *testing.T) {
	var out bytes.Buffer
	tr := NewStreamTransport(strings.NewReader(""), &out)
	require.NoError(t, tr.WriteResponse(protocol.NewJsonRpcErrorResponse(protocol.ErrMethodNotFound, "nope", 7)))
	require.NoError(t, tr.WriteResponse(protocol.NewJsonRpcErrorResponse(protocol.ErrInternal, "worse", 8)))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	resp, err := protocol.ParseJsonRpcResponse([]byte(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, "nope", resp.Error.Message)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/train.csv"))
	assert.True(t, IsURL("HTTP://example.com/train.csv"))
	assert.False(t, IsURL("./train.csv"))
	assert.False(t, IsURL("ftp://example.com/train.csv"))
}

func TestFetchDecodesContentEncodings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain.csv":
			_, _ = io.WriteString(w, seasonsCSV)
		case "/gzip.csv":
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			_, _ = io.WriteString(gz, seasonsCSV)
			_ = gz.Close()
		case "/br.csv":
			w.Header().Set("Content-Encoding", "br")
			br := brotli.NewWriter(w)
			_, _ = io.WriteString(br, seasonsCSV)
			_ = br.Close()
		case "/zstd.csv":
			w.Header().Set("Content-Encoding", "zstd")
			_, _ = io.WriteString(w, "????")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/plain.csv", "/gzip.csv", "/br.csv"} {
		data, err := Fetch(srv.URL + path)
		require.NoError(t, err, path)
		assert.Equal(t, seasonsCSV, string(data), path)
	}

	_, err := Fetch(srv.URL + "/zstd.csv")
	assert.ErrorContains(t, err, "unsupported content encoding")
	_, err = Fetch(srv.URL + "/missing.csv")
	assert.ErrorContains(t, err, "404")
}

func TestFetchTrustsConfiguredCABundle(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, seasonsCSV)
	}))
	defer srv.Close()
	t.Cleanup(func() { SetCABundle("") })

	SetCABundle("")
	_, err := Fetch(srv.URL)
	assert.Error(t, err, "self signed certificate is not trusted by default")

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, block, 0644))

	SetCABundle(bundle)
	data, err := Fetch(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, seasonsCSV, string(data))

	SetCABundle(filepath.Join(t.TempDir(), "missing.pem"))
	_, err = Fetch(srv.URL)
	assert.ErrorContains(t, err, "CA bundle")
}
