// Command mcpecho wires a server exposing a single "echo" tool to a client
// over the in-memory transport pair, as a runnable smoke test of the
// session engine end to end: initialize, tools/list, tools/call.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	mcp "github.com/drengskapur/mcp-go"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransportPair()

	server := mcp.NewServer(
		mcp.Implementation{Name: "mcpecho-server", Version: "0.1.0"},
		mcp.WithInstructions("Sample server exposing a single echo tool."),
	)
	if err := server.RegisterTool(mcp.Tool{
		Name:        "echo",
		Description: "Returns the given message unchanged.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"message": {Type: "string"},
			},
			Required: []string{"message"},
		},
	}, echoHandler); err != nil {
		return fmt.Errorf("register echo tool: %w", err)
	}

	serverSession := mcp.NewSession(serverTransport, mcp.WithLogger(logger.With("role", "server")))
	go func() {
		if err := server.Serve(ctx, serverSession); err != nil {
			logger.Error("server exited", "error", err)
		}
	}()

	clientSession := mcp.NewSession(clientTransport, mcp.WithLogger(logger.With("role", "client")))
	client := mcp.NewClient(clientSession, mcp.Implementation{Name: "mcpecho-client", Version: "0.1.0"})
	defer client.Close()

	result, err := client.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("connected to %s %s\n", result.ServerInfo.Name, result.ServerInfo.Version)

	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	fmt.Printf("server offers %d tool(s)\n", len(tools))

	raw, err := client.CallTool(ctx, "echo", map[string]string{"message": "hello, mcp"}, nil)
	if err != nil {
		return fmt.Errorf("call tool: %w", err)
	}
	fmt.Printf("echo result: %s\n", raw)

	return nil
}

func echoHandler(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, &mcp.InvalidParamsError{Detail: err.Error()}
	}
	return struct {
		Content []map[string]string `json:"content"`
	}{
		Content: []map[string]string{{"type": "text", "text": params.Message}},
	}, nil
}
