// Package mcp serves the speak tool over newline-delimited JSON-RPC 2.0 on
// stdio, the transport the remote assistant uses for local MCP servers.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// ToolSpeak is the only tool this server exposes.
	ToolSpeak = "speak"

	serverName   = "voxrelay-tts"
	errorPrefix  = "TTS error:"
	maxLineBytes = 1024 * 1024
)

const speakDescription = "Speak text aloud using the device's text-to-speech engine. " +
	"Keep spoken text brief and conversational and describe any code at a high level, " +
	`for example "I've added the login validation function to auth.py".`

// Speaker synthesizes text and describes the outcome.
type Speaker interface {
	Speak(ctx context.Context, text string) string
}

// Server answers MCP requests for a single speak tool.
type Server struct {
	speaker     Speaker
	version     string
	logger      *slog.Logger
	initialized bool
}

// NewServer builds a Server backed by speaker.
func NewServer(speaker Speaker, version string, logger *slog.Logger) *Server {
	return &Server{speaker: speaker, version: version, logger: logger}
}

// Run processes requests from input until EOF or ctx is done. Each request
// occupies one line.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); writeErr != nil {
				return fmt.Errorf("write parse error response: %w", writeErr)
			}
			continue
		}

		if req.JSONRPC != "2.0" {
			if !req.isNotification() {
				if writeErr := writeError(encoder, req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); writeErr != nil {
					return fmt.Errorf("write version error response: %w", writeErr)
				}
			}
			continue
		}

		if req.isNotification() {
			s.debug("notification", "method", req.Method)
			continue
		}

		if err := s.dispatch(ctx, encoder, &req); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, encoder *json.Encoder, req *request) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(encoder, req)
	case "ping":
		return writeResult(encoder, req.ID, map[string]any{})
	case "tools/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return writeResult(encoder, req.ID, toolsListResult{Tools: []toolDescription{speakTool()}})
	case "tools/call":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(ctx, encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for initialize")
	}

	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}

	s.initialized = true
	s.debug("initialize",
		"client", params.ClientInfo.Name,
		"client_protocol", params.ProtocolVersion,
	)

	return writeResult(encoder, req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: serverName, Version: s.version},
	})
}

func (s *Server) handleToolsCall(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}

	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}
	if params.Name != ToolSpeak {
		return writeError(encoder, req.ID, codeInvalidParams, "unknown tool: "+params.Name)
	}

	var args struct {
		Text *string `json:"text"`
	}
	if len(params.Arguments) > 0 && string(params.Arguments) != "null" {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return writeError(encoder, req.ID, codeInvalidParams, "invalid arguments: "+err.Error())
		}
	}
	if args.Text == nil {
		return writeError(encoder, req.ID, codeInvalidParams, "missing required argument: text")
	}

	status := s.speaker.Speak(ctx, *args.Text)
	isError := strings.HasPrefix(status, errorPrefix)
	if isError && s.logger != nil {
		s.logger.Warn("speak failed", "status", status)
	}

	return writeResult(encoder, req.ID, toolsCallResult{
		Content: []contentBlock{{Type: "text", Text: status}},
		IsError: isError,
	})
}

func speakTool() toolDescription {
	return toolDescription{
		Name:        ToolSpeak,
		Title:       "Speak",
		Description: speakDescription,
		InputSchema: inputSchema{
			Type: "object",
			Properties: map[string]schemaProperty{
				"text": {Type: "string", Description: "The text to speak aloud (keep it concise for voice)"},
			},
			Required: []string{"text"},
		},
	}
}

func (s *Server) debug(msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, attrs...)
	}
}

func writeResult(encoder *json.Encoder, id json.RawMessage, result any) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
