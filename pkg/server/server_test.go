package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/richard-senior/mvreg/pkg/protocol"
	"github.com/richard-senior/mvreg/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// session feeds the given request lines through a server and returns the decoded responses
func session(t *testing.T, lines ...string) []*protocol.JsonRpcResponse {
	t.Helper()
	var out bytes.Buffer
	s := NewServer(transport.NewStreamTransport(strings.NewReader(strings.Join(lines, "\n")), &out))
	require.NoError(t, s.ProcessRequests())

	var ret []*protocol.JsonRpcResponse
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		resp, err := protocol.ParseJsonRpcResponse(scanner.Bytes())
		require.NoError(t, err)
		ret = append(ret, resp)
	}
	return ret
}

func encode(t *testing.T, req *protocol.JsonRpcRequest) string {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

func TestInitializeHandshake(t *testing.T) {
	initReq, err := protocol.NewJsonRpcRequest(string(protocol.MethodInitialize),
		map[string]any{"protocolVersion": "2025-03-26", "capabilities": map[string]any{}}, 0)
	require.NoError(t, err)
	initialized, err := protocol.NewJsonRpcNotification("notifications/initialized", nil)
	require.NoError(t, err)
	list, err := protocol.NewJsonRpcRequest(string(protocol.MethodToolsList), map[string]any{}, 1)
	require.NoError(t, err)

	responses := session(t, encode(t, initReq), encode(t, initialized), encode(t, list))
	// the notification gets no answer
	require.Len(t, responses, 2)

	var result struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(responses[0].Result, &result))
	assert.Equal(t, "2025-03-26", result.ProtocolVersion)
	assert.Equal(t, "mvreg", result.ServerInfo.Name)
	assert.Contains(t, result.Capabilities, "tools")

	var tools protocol.ToolsResponse
	require.NoError(t, json.Unmarshal(responses[1].Result, &tools))
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"mvreg_evaluate", "mvreg_predict", "mvreg_runs"}, names)
	assert.EqualValues(t, 1, responses[1].ID)
}

func TestInitializeDefaultsProtocolVersion(t *testing.T) {
	responses := session(t, `{"jsonrpc":"2.0","id":"a","method":"initialize"}`)
	require.Len(t, responses, 1)
	assert.Contains(t, string(responses[0].Result), defaultProtocolVersion)
	assert.Equal(t, "a", responses[0].ID)
}

func TestErrorsAreReturnedNotFatal(t *testing.T) {
	responses := session(t,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"1.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"mvreg_predict","arguments":{"market_value":"lots"}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"invoke_tool","params":{"parameters":{}}}`,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"initialize"}}`,
	)
	require.Len(t, responses, 6)

	assert.Equal(t, protocol.ErrMethodNotFound, responses[0].Error.Code)
	assert.Equal(t, protocol.ErrInvalidRequest, responses[1].Error.Code)
	assert.Nil(t, responses[1].ID)
	assert.Contains(t, responses[2].Error.Message, "tool not found")
	assert.Equal(t, protocol.ErrToolExecutionFailed, responses[3].Error.Code)
	assert.Contains(t, responses[3].Error.Message, "market_value")
	assert.Equal(t, protocol.ErrInvalidParams, responses[4].Error.Code)
	// protocol methods are not callable as tools
	assert.Contains(t, responses[5].Error.Message, "tool not found")
}

func TestShutdownStopsProcessing(t *testing.T) {
	shutdown, err := protocol.NewJsonRpcRequest(string(protocol.MethodShutdown), nil, 1)
	require.NoError(t, err)
	list, err := protocol.NewJsonRpcRequest(string(protocol.MethodToolsList), nil, 2)
	require.NoError(t, err)
	// no params at all
	assert.NotContains(t, encode(t, shutdown), "params")

	responses := session(t, encode(t, shutdown), encode(t, list))
	require.Len(t, responses, 1)
	assert.Nil(t, responses[0].Error)
}

func TestMalformedJSONEndsSession(t *testing.T) {
	var out bytes.Buffer
	s := NewServer(transport.NewStreamTransport(strings.NewReader(`{"jsonrpc": oops}`), &out))
	assert.Error(t, s.ProcessRequests())
}

func TestPrefixedToolNames(t *testing.T) {
	s := NewServer(transport.NewStreamTransport(strings.NewReader(""), &bytes.Buffer{}))
	assert.NotNil(t, s.toolHandler("mcp___mvreg_predict"))
	assert.NotNil(t, s.toolHandler("mvreg_evaluate"))
	assert.Nil(t, s.toolHandler("mcp___tools/list"))

	p, err := paramsMap(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, p["a"])
	p, err = paramsMap(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, p)
	_, err = paramsMap(42)
	assert.Error(t, err)
}
