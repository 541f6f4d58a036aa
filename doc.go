// Package mcp implements the core session engine of the Model Context
// Protocol: a symmetric, bidirectional JSON-RPC 2.0 runtime shared by both
// an MCP client (editor / agent host) and an MCP server (tool / resource
// provider).
//
// The engine owns four things: the mapping from outbound request ids to
// pending awaiters, the initialize/ready/closed session
// state machine (see Session), the notification router that dispatches
// progress, cancellation, and resource-change events, and — on the server
// side — the method dispatcher and its capability-gated registries for
// tools, prompts, resources, and logging.
//
// Concrete transports (stdio, SSE+HTTP, in-memory) are pluggable via the
// Transport interface; none of the session logic depends on the wire
// format.
//
// Basic client usage over stdio:
//
//	transport := mcp.NewStdioTransport(os.Stdin, os.Stdout)
//	session := mcp.NewSession(transport)
//	defer session.Close()
//
//	client := mcp.NewClient(session, mcp.Implementation{Name: "my-editor", Version: "1.0.0"})
//	result, err := client.Initialize(ctx)
//	tools, err := client.ListTools(ctx)
//
// Basic server usage:
//
//	server := mcp.NewServer(mcp.Implementation{Name: "my-tools", Version: "1.0.0"})
//	server.RegisterTool(mcp.Tool{Name: "echo", InputSchema: echoSchema}, echoHandler)
//
//	session := mcp.NewSession(transport)
//	server.Serve(ctx, session)
package mcp
