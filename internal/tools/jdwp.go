// Package tools registers the debugger bridge as MCP tools. Every tool
// returns plain text; failures come back as an "Error: ..." text result
// with the error flag set so callers can branch without parsing.
package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/debuggerx/jdwp-mcp/internal/bridge"
)

// ConnectInput defines input for jdwp_connect.
type ConnectInput struct {
	Host string `json:"host,omitempty" jsonschema:"JDWP host (default localhost)"`
	Port int    `json:"port,omitempty" jsonschema:"JDWP port the JVM listens on (default 55005)"`
}

// ThreadInput identifies a thread.
type ThreadInput struct {
	ThreadID uint64 `json:"thread_id" jsonschema:"Thread ID from jdwp_get_threads"`
}

// FrameInput identifies a stack frame within a thread.
type FrameInput struct {
	ThreadID   uint64 `json:"thread_id" jsonschema:"Thread ID from jdwp_get_threads"`
	FrameIndex int    `json:"frame_index,omitempty" jsonschema:"Frame index from jdwp_get_stack, 0 is the current frame"`
}

// ObjectInput identifies an object in the target VM.
type ObjectInput struct {
	ObjectID uint64 `json:"object_id" jsonschema:"Object ID from a previous result (the N in Object#N)"`
}

// InvokeInput defines input for jdwp_invoke_method.
type InvokeInput struct {
	ThreadID uint64   `json:"thread_id" jsonschema:"Suspended thread to run the invocation on"`
	ObjectID uint64   `json:"object_id" jsonschema:"Receiver object ID (the N in Object#N)"`
	Method   string   `json:"method" jsonschema:"Method name, e.g. toString or get"`
	Args     []string `json:"args,omitempty" jsonschema:"Argument literals: 42, 3.14, true, null, \\\"text\\\", Object#123"`
}

// EvaluateInput defines input for jdwp_evaluate.
type EvaluateInput struct {
	ThreadID   uint64 `json:"thread_id" jsonschema:"Suspended thread providing the frame context"`
	FrameIndex int    `json:"frame_index,omitempty" jsonschema:"Frame index, 0 is the current frame"`
	Expression string `json:"expression" jsonschema:"Dot-notation path over locals and this, e.g. request.data"`
}

// EmptyInput is for tools that take no arguments.
type EmptyInput struct{}

// TextOutput carries a tool's rendered text result.
type TextOutput struct {
	Result string `json:"result"`
}

// RegisterJDWPTools wires every debugger tool onto the server, all
// backed by one shared session. defaultHost and defaultPort fill in
// what jdwp_connect calls omit.
func RegisterJDWPTools(server *mcp.Server, session *bridge.Session, defaultHost string, defaultPort int) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "jdwp_connect",
		Description: `Connect to a JVM started with -agentlib:jdwp=transport=dt_socket,server=y,address=*:55005.

Examples:
  jdwp_connect {}
  jdwp_connect {host: "localhost", port: 8000}`,
	}, makeConnectHandler(session, defaultHost, defaultPort))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jdwp_disconnect",
		Description: "Disconnect from the JVM. Cached object and thread references become invalid.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, TextOutput, error) {
		return ok(session.Disconnect())
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jdwp_get_version",
		Description: "Report the connected JVM's name, version and description.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Version(ctx))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jdwp_get_threads",
		Description: "List all threads with their IDs, names and suspension state. Thread IDs feed the stack/locals/invoke tools.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Threads(ctx))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jdwp_get_stack",
		Description: "Show the call stack of a suspended thread. Frame 0 is the current frame.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ThreadInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Stack(ctx, input.ThreadID))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "jdwp_get_locals",
		Description: `List local variables visible in a stack frame as "<type> <name> = <value>" lines.
Object values appear as Object#N; pass N to jdwp_get_fields or jdwp_invoke_method.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input FrameInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Locals(ctx, input.ThreadID, input.FrameIndex))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "jdwp_get_fields",
		Description: `Inspect an object's fields, including inherited ones. Arrays dump their elements.
ArrayList, LinkedList, HashMap, LinkedHashMap, HashSet and LinkedHashSet also get a decoded element/entry view.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ObjectInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Fields(ctx, input.ObjectID))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "jdwp_invoke_method",
		Description: `Call a method on an object inside a suspended thread and report the result.
The thread briefly runs during the call; fetch frames again afterwards.

Examples:
  jdwp_invoke_method {thread_id: 15, object_id: 26886, method: "toString"}
  jdwp_invoke_method {thread_id: 15, object_id: 26886, method: "get", args: ["\"key\""]}`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input InvokeInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Invoke(ctx, input.ThreadID, input.ObjectID, input.Method, input.Args))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jdwp_evaluate",
		Description: "Evaluate a dot-notation expression in a frame: fields first, then no-arg getters. Example: request.data.size",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EvaluateInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Evaluate(ctx, input.ThreadID, input.FrameIndex, input.Expression))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jdwp_resume",
		Description: "Resume all threads in the target VM. Cached frame references become invalid.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, TextOutput, error) {
		return outcome(session.Resume(ctx))
	})
}

func makeConnectHandler(session *bridge.Session, defaultHost string, defaultPort int) func(context.Context, *mcp.CallToolRequest, ConnectInput) (*mcp.CallToolResult, TextOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ConnectInput) (*mcp.CallToolResult, TextOutput, error) {
		host := input.Host
		if host == "" {
			host = defaultHost
		}
		port := input.Port
		if port == 0 {
			port = defaultPort
		}
		if port < 1 || port > 65535 {
			return errorResult(fmt.Sprintf("Error: invalid port %d", port)), TextOutput{}, nil
		}
		return outcome(session.Connect(ctx, host, port))
	}
}

// outcome maps a bridge call to a tool result. Bridge errors are
// operational outcomes for the caller to react to, not tool failures,
// so they come back as error-flagged text rather than a Go error.
func outcome(text string, err error) (*mcp.CallToolResult, TextOutput, error) {
	if err != nil {
		return errorResult(fmt.Sprintf("Error: %v", err)), TextOutput{}, nil
	}
	return ok(text)
}

func ok(text string) (*mcp.CallToolResult, TextOutput, error) {
	return textResult(text), TextOutput{Result: text}, nil
}

func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
