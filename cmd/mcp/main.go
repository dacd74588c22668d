package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const protocolVersion = "2024-11-05"

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// MCP structures
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	categoryEnum  = []string{"news", "memes", "sports", "videos", "weather", "social"}
	frequencyEnum = []string{"daily", "weekly"}
)

// MCPServer exposes the pulsebot admin API as MCP tools over stdio.
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
	log         *zap.SugaredLogger
}

func NewMCPServer(apiURL, username, password string, log *zap.SugaredLogger) *MCPServer {
	return &MCPServer{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: username,
		apiPassword: password,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
}

// Run answers one JSON-RPC request per input line until in is exhausted.
func (s *MCPServer) Run(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	enc := json.NewEncoder(out)

	for {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			s.serveLine(enc, line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
	}
}

func (s *MCPServer) serveLine(enc *json.Encoder, line string) {
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.log.Warnw("failed to parse request", "error", err)
		s.write(enc, JSONRPCResponse{JSONRPC: "2.0", Error: &RPCError{Code: -32700, Message: "Parse error"}})
		return
	}
	// notifications carry no id and get no reply
	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		return
	}
	s.write(enc, s.handleRequest(req))
}

func (s *MCPServer) write(enc *json.Encoder, resp JSONRPCResponse) {
	if err := enc.Encode(resp); err != nil {
		s.log.Errorw("failed to write response", "error", err)
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized", "ping":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools()}}
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
	}
	result.ServerInfo.Name = "pulsebot-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func tools() []Tool {
	userID := Property{Type: "string", Description: "Telegram user ID"}
	return []Tool{
		{
			Name:        "pulsebot_scheduler_status",
			Description: "List the armed delivery timers with their next fire time.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "pulsebot_scheduler_init",
			Description: "Rebuild delivery timers from stored subscriptions. Safe to run repeatedly.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "pulsebot_list_subscriptions",
			Description: "List a user's subscriptions and their next delivery.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"user_id": userID},
				Required:   []string{"user_id"},
			},
		},
		{
			Name:        "pulsebot_subscribe",
			Description: "Subscribe a user to a daily or weekly digest of a category.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id":   userID,
					"category":  {Type: "string", Description: "Content category", Enum: categoryEnum},
					"frequency": {Type: "string", Description: "Delivery frequency", Enum: frequencyEnum},
				},
				Required: []string{"user_id", "category", "frequency"},
			},
		},
		{
			Name:        "pulsebot_unsubscribe",
			Description: "Remove a user's subscription to a category.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id":  userID,
					"category": {Type: "string", Description: "Content category", Enum: categoryEnum},
				},
				Required: []string{"user_id", "category"},
			},
		},
	}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	result, isError := s.callTool(params)
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *MCPServer) callTool(params ToolCallParams) (string, bool) {
	arg := func(name string) string {
		v, ok := params.Arguments[name]
		if !ok || v == nil {
			return ""
		}
		switch n := v.(type) {
		case float64:
			return fmt.Sprintf("%.0f", n)
		default:
			return fmt.Sprintf("%v", n)
		}
	}
	userPath := func() (string, bool) {
		id := arg("user_id")
		if id == "" {
			return "", false
		}
		return "/api/users/" + url.PathEscape(id), true
	}

	switch params.Name {
	case "pulsebot_scheduler_status":
		return s.apiRequest(http.MethodGet, "/scheduler/status", nil)
	case "pulsebot_scheduler_init":
		return s.apiRequest(http.MethodPost, "/scheduler/init", nil)
	case "pulsebot_list_subscriptions":
		p, ok := userPath()
		if !ok {
			return "user_id is required", true
		}
		return s.apiRequest(http.MethodGet, p+"/subscriptions", nil)
	case "pulsebot_subscribe":
		p, ok := userPath()
		if !ok {
			return "user_id is required", true
		}
		return s.apiRequest(http.MethodPost, p+"/subscriptions", map[string]string{
			"category":  arg("category"),
			"frequency": arg("frequency"),
		})
	case "pulsebot_unsubscribe":
		p, ok := userPath()
		if !ok || arg("category") == "" {
			return "user_id and category are required", true
		}
		return s.apiRequest(http.MethodDelete, p+"/subscriptions/"+url.PathEscape(arg("category")), nil)
	default:
		return "Unknown tool: " + params.Name, true
	}
}

func (s *MCPServer) apiRequest(method, path string, body any) (string, bool) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Sprintf("Error encoding request: %v", err), true
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.apiURL+path, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}
	if s.apiUsername != "" {
		req.SetBasicAuth(s.apiUsername, s.apiPassword)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}
	s.log.Debugw("api call", "method", method, "path", path, "status", resp.StatusCode)

	var apiResp struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return strings.TrimSpace(string(respBody)), resp.StatusCode >= 400
	}

	if resp.StatusCode >= 400 || (apiResp.Success != nil && !*apiResp.Success) {
		if apiResp.Error != "" {
			return fmt.Sprintf("API Error: %s", apiResp.Error), true
		}
		return fmt.Sprintf("API Error: %s\n%s", resp.Status, pretty(respBody)), true
	}

	// scheduler endpoints answer with a flat object instead of a data envelope
	if len(apiResp.Data) > 0 {
		return pretty(apiResp.Data), false
	}
	return pretty(respBody), false
}

func pretty(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// stdout carries the protocol; zap's development logger writes to stderr
	zl, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	log := zl.Sugar().Named("mcp")

	server := NewMCPServer(
		getenv("PULSEBOT_API_URL", "http://localhost:8080"),
		os.Getenv("PULSEBOT_API_USERNAME"),
		os.Getenv("PULSEBOT_API_PASSWORD"),
		log,
	)
	if err := server.Run(os.Stdin, os.Stdout); err != nil {
		log.Errorw("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
