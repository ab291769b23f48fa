package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/richard-senior/mvreg/internal/logger"
	"github.com/richard-senior/mvreg/pkg/protocol"
	"github.com/richard-senior/mvreg/pkg/tools"
	"github.com/richard-senior/mvreg/pkg/transport"
)

const (
	serverName    = "mvreg"
	serverVersion = "1.0.0"

	defaultProtocolVersion = "2024-11-05"

	// some clients namespace tool names
	toolPrefix = "mcp___"
)

// Server represents an MCP server
type Server struct {
	transport transport.Transport
	mu        sync.Mutex
	handlers  map[string]HandlerFunc // protocol methods
	tools     []protocol.Tool
	toolFuncs map[string]HandlerFunc
	done      bool
}

// HandlerFunc is a function that handles an MCP request
type HandlerFunc func(params interface{}) (interface{}, error)

// Singleton instance
var (
	instance *Server
	once     sync.Once
)

// GetInstance returns the singleton, creating it over stdio if needed
func GetInstance() *Server {
	return InitInstance(transport.NewStdioTransport())
}

// InitInstance initializes the singleton with the given transport; later calls return the same server
func InitInstance(t transport.Transport) *Server {
	once.Do(func() {
		instance = NewServer(t)
	})
	return instance
}

// NewServer creates a server with the analysis tools and protocol handlers registered
func NewServer(t transport.Transport) *Server {
	s := &Server{
		transport: t,
		handlers:  make(map[string]HandlerFunc),
		toolFuncs: make(map[string]HandlerFunc),
	}
	s.RegisterDefaultTools()
	return s
}

// RegisterTool registers a tool with the server
func (s *Server) RegisterTool(tool protocol.Tool, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, tool)
	s.toolFuncs[tool.Name] = handler
	logger.Info("Registered tool:", tool.Name)
}

// GetTools returns a copy of the registered tools
func (s *Server) GetTools() []protocol.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Tool(nil), s.tools...)
}

// RegisterDefaultTools registers the analysis tools and the built in protocol handlers
func (s *Server) RegisterDefaultTools() {
	logger.Info("Registering default tools...")

	s.RegisterTool(tools.EvaluateTool(), tools.HandleEvaluateTool)
	s.RegisterTool(tools.PredictTool(), tools.HandlePredictTool)
	s.RegisterTool(tools.RunsTool(), tools.HandleRunsTool)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[string(protocol.MethodInitialize)] = s.handleInitialize
	s.handlers[string(protocol.MethodInitialized)] = s.handleInitialized
	s.handlers[string(protocol.MethodToolsList)] = s.handleToolsList
	s.handlers[string(protocol.MethodToolsCall)] = s.handleToolsCall
	s.handlers[string(protocol.MethodShutdown)] = s.handleShutdown
}

// Start processes requests until the client disconnects or a signal arrives
func (s *Server) Start() error {
	logger.Highlight("Starting MCP server")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ProcessRequests()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("Received signal:", sig)
		return nil
	}
}

// ProcessRequests reads and answers requests until EOF or shutdown; EOF is a clean exit
func (s *Server) ProcessRequests() error {
	for {
		req, err := s.transport.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// a well formed but invalid request is answered, anything else ends the session
			var rpcErr *protocol.JsonRpcError
			if errors.As(err, &rpcErr) {
				if werr := s.transport.WriteResponse(protocol.NewJsonRpcErrorResponse(rpcErr.Code, rpcErr.Message, nil)); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		// nil means no response is required
		resp := s.handleRequest(req)
		if resp != nil {
			if err := s.transport.WriteResponse(resp); err != nil {
				return err
			}
		}

		s.mu.Lock()
		done := s.done
		s.mu.Unlock()
		if done {
			logger.Info("Shutdown requested")
			return nil
		}
	}
}

func (s *Server) handler(method string) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[method]
}

// toolHandler finds a tool by name, with or without the client's prefix
func (s *Server) toolHandler(name string) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h := s.toolFuncs[name]; h != nil {
		return h
	}
	if strings.HasPrefix(name, toolPrefix) {
		logger.Info("Trying with stripped name:", strings.TrimPrefix(name, toolPrefix))
		return s.toolFuncs[strings.TrimPrefix(name, toolPrefix)]
	}
	return nil
}

// handleRequest processes a request and returns a response
func (s *Server) handleRequest(req *protocol.JsonRpcRequest) *protocol.JsonRpcResponse {
	logger.Info(">> ", req.Method)
	logger.Debug("Full request:", string(req.Params))

	if strings.HasPrefix(req.Method, "notifications/") {
		logger.Info("Received notification:", req.Method)
		return nil
	}

	resp := &protocol.JsonRpcResponse{
		JsonRPC: protocol.JsonRpcVersion,
		ID:      req.ID,
	}

	var handler HandlerFunc
	var params any

	if req.Method == string(protocol.MethodInvokeTool) {
		var invokeParams map[string]any
		if err := json.Unmarshal(req.Params, &invokeParams); err != nil {
			resp.Error = &protocol.JsonRpcError{
				Code:    protocol.ErrInvalidParams,
				Message: "Invalid parameters for invoke_tool: " + err.Error(),
			}
			return resp
		}
		toolName, ok := invokeParams["name"].(string)
		if !ok {
			resp.Error = &protocol.JsonRpcError{
				Code:    protocol.ErrInvalidParams,
				Message: "Missing tool name in invoke_tool parameters",
			}
			return resp
		}
		logger.Info("Tool invocation requested for:", toolName)
		handler = s.toolHandler(toolName)
		params = invokeParams["parameters"]
	} else {
		handler = s.handler(req.Method)
		params = req.Params
	}

	if handler == nil {
		resp.Error = &protocol.JsonRpcError{
			Code:    protocol.ErrMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
		return resp
	}

	result, err := handler(params)
	if err == nil && result == nil {
		return nil
	}
	if err != nil {
		logger.Warn("Request failed", req.Method, err)
		resp.Error = &protocol.JsonRpcError{
			Code:    protocol.ErrToolExecutionFailed,
			Message: err.Error(),
		}
		return resp
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		resp.Error = &protocol.JsonRpcError{
			Code:    protocol.ErrInternal,
			Message: "Failed to marshal result: " + err.Error(),
		}
		return resp
	}
	resp.Result = resultBytes
	logger.Debug("Full response:", string(resultBytes))
	return resp
}

// paramsMap normalises raw JSON or already decoded params into a map
func paramsMap(params any) (map[string]any, error) {
	switch p := params.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return p, nil
	case json.RawMessage:
		if len(p) == 0 {
			return map[string]any{}, nil
		}
		var ret map[string]any
		if err := json.Unmarshal(p, &ret); err != nil {
			return nil, err
		}
		if ret == nil {
			ret = map[string]any{}
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unexpected params type %T", params)
}

func (s *Server) handleToolsList(params interface{}) (interface{}, error) {
	logger.Info("Handling tools/list request")
	return protocol.ToolsResponse{Tools: s.GetTools()}, nil
}

func (s *Server) handleInitialize(params interface{}) (interface{}, error) {
	tools := s.GetTools()
	logger.Info("Handling initialize request with", len(tools), "tools registered")

	requestedProtocolVersion := defaultProtocolVersion
	if p, err := paramsMap(params); err == nil {
		if version, ok := p["protocolVersion"].(string); ok && version != "" {
			requestedProtocolVersion = version
		}
	} else {
		logger.Warn("Failed to read initialize params:", err)
	}
	logger.Info("Using protocol version:", requestedProtocolVersion)

	capabilities := map[string]any{}
	if len(tools) > 0 {
		capabilities["tools"] = map[string]any{
			"listChanged": false,
		}
	}

	type serverInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	return struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ServerInfo      serverInfo     `json:"serverInfo"`
	}{
		ProtocolVersion: requestedProtocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      serverInfo{Name: serverName, Version: serverVersion},
	}, nil
}

// 'initialized' does not require a response
func (s *Server) handleInitialized(params interface{}) (interface{}, error) {
	logger.Info("Handling initialized notification")
	return nil, nil
}

func (s *Server) handleShutdown(params interface{}) (interface{}, error) {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	return map[string]any{}, nil
}

func (s *Server) handleToolsCall(params any) (any, error) {
	logger.Info("Handling tools/call request")

	p, err := paramsMap(params)
	if err != nil {
		return nil, fmt.Errorf("invalid tools/call parameters: %w", err)
	}
	toolName, _ := p["name"].(string)
	if toolName == "" {
		return nil, fmt.Errorf("invalid tools/call parameters: missing name")
	}
	logger.Info("Tool call requested for:", toolName)

	handler := s.toolHandler(toolName)
	if handler == nil {
		return nil, fmt.Errorf("tool not found: %s", toolName)
	}

	args, _ := p["arguments"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	result, err := handler(args)
	if err != nil {
		return nil, fmt.Errorf("tool execution failed: %w", err)
	}
	return result, nil
}
