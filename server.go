package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/thedevopsstore/cfn-template-manager/internal/cfn"
)

// serverName identifies this MCP server to clients.
const serverName = "cfn-template-manager"

// serverInstructions tells MCP clients how to drive the deployment flow.
const serverInstructions = "This server manages AWS CloudFormation deployments from a curated " +
	"template repository. Start with list_available_resources to see what can be deployed, " +
	"then get_template_parameters to learn what a template requires. Always validate_parameters " +
	"before deploying. Deployment is a two-step flow: create_change_set computes a preview " +
	"without changing anything, describe_change_set shows exactly what would change, and " +
	"execute_change_set applies it. Use get_stack_status to poll progress and delete_stack " +
	"to tear a deployment down."

// Server exposes the template manager over the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	manager   *cfn.Manager
}

// NewServer creates an MCP server with all template manager tools
// registered.
func NewServer(manager *cfn.Manager) *Server {
	s := &Server{manager: manager}

	s.mcpServer = server.NewMCPServer(
		serverName,
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server instance (useful for testing).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over standard input/output.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP serves MCP over the streamable HTTP transport on addr.
func (s *Server) ServeHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}

// registerTools registers every template manager tool.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_available_resources",
			mcp.WithDescription("List all resource types that can be deployed from the template repository."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListAvailableResources,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_template_info",
			mcp.WithDescription("Get a summary of a resource type's template: description plus parameter, resource, and output names."),
			mcp.WithString("resource_type",
				mcp.Required(),
				mcp.Description("Resource type name as returned by list_available_resources (e.g. 's3', 'vpc')"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetTemplateInfo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_template_parameters",
			mcp.WithDescription("Get the full parameter schema for a resource type: types, defaults, constraints, and which parameters are required."),
			mcp.WithString("resource_type",
				mcp.Required(),
				mcp.Description("Resource type name as returned by list_available_resources"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetTemplateParameters,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("validate_parameters",
			mcp.WithDescription("Validate parameter values against a resource type's template schema without contacting AWS. Returns errors and warnings; always run this before create_change_set."),
			mcp.WithString("resource_type",
				mcp.Required(),
				mcp.Description("Resource type name as returned by list_available_resources"),
			),
			mcp.WithObject("parameters",
				mcp.Required(),
				mcp.Description("Parameter name/value pairs to validate"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleValidateParameters,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create_change_set",
			mcp.WithDescription("Create a CloudFormation change set previewing a deployment. Validates parameters first and resolves CREATE vs UPDATE against the stack's actual existence. Nothing is changed until execute_change_set."),
			mcp.WithString("resource_type",
				mcp.Required(),
				mcp.Description("Resource type name as returned by list_available_resources"),
			),
			mcp.WithString("stack_name",
				mcp.Required(),
				mcp.Description("CloudFormation stack name (letters, digits, and hyphens, starting with a letter)"),
			),
			mcp.WithObject("parameters",
				mcp.Description("Parameter name/value pairs for the deployment"),
			),
			mcp.WithString("change_set_type",
				mcp.Description("Declared intent, CREATE or UPDATE. Live stack existence overrides it; the declaration only decides when the existence check is inconclusive."),
				mcp.Enum("CREATE", "UPDATE"),
			),
		),
		s.handleCreateChangeSet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("describe_change_set",
			mcp.WithDescription("Describe a change set: its status and the exact resource changes (Add, Modify, Remove) it would apply. Read-only and repeatable."),
			mcp.WithString("change_set_name",
				mcp.Required(),
				mcp.Description("Change set name returned by create_change_set"),
			),
			mcp.WithString("stack_name",
				mcp.Required(),
				mcp.Description("Stack the change set belongs to"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleDescribeChangeSet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("execute_change_set",
			mcp.WithDescription("Execute a previously reviewed change set, applying its changes to the stack."),
			mcp.WithString("change_set_name",
				mcp.Required(),
				mcp.Description("Change set name returned by create_change_set"),
			),
			mcp.WithString("stack_name",
				mcp.Required(),
				mcp.Description("Stack the change set belongs to"),
			),
			mcp.WithBoolean("wait",
				mcp.Description("Wait for the stack to reach a terminal state before returning. Default: false"),
			),
		),
		s.handleExecuteChangeSet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_stack_status",
			mcp.WithDescription("Get a stack's current status, outputs, and applied parameters. An absent stack reports DOES_NOT_EXIST rather than an error."),
			mcp.WithString("stack_name",
				mcp.Required(),
				mcp.Description("CloudFormation stack name"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetStackStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_stack",
			mcp.WithDescription("Delete a stack and all its resources. Deleting an absent stack succeeds, so retries are safe."),
			mcp.WithString("stack_name",
				mcp.Required(),
				mcp.Description("CloudFormation stack name"),
			),
			mcp.WithBoolean("wait",
				mcp.Description("Wait until the stack is fully deleted before returning. Default: false"),
			),
		),
		s.handleDeleteStack,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("refresh_templates",
			mcp.WithDescription("Re-sync the template repository from its git remote and rebuild the template index."),
		),
		s.handleRefreshTemplates,
	)
}

// --- Tool Handlers ---

func (s *Server) handleListAvailableResources(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalToolResult(s.manager.ListAvailableResources())
}

func (s *Server) handleGetTemplateInfo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resourceType := mcp.ParseString(req, "resource_type", "")
	if resourceType == "" {
		return mcp.NewToolResultError("resource_type is required"), nil
	}
	return marshalToolResult(s.manager.GetTemplateInfo(resourceType))
}

func (s *Server) handleGetTemplateParameters(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resourceType := mcp.ParseString(req, "resource_type", "")
	if resourceType == "" {
		return mcp.NewToolResultError("resource_type is required"), nil
	}
	return marshalToolResult(s.manager.GetTemplateParameters(resourceType))
}

func (s *Server) handleValidateParameters(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resourceType := mcp.ParseString(req, "resource_type", "")
	if resourceType == "" {
		return mcp.NewToolResultError("resource_type is required"), nil
	}
	values, err := parseParameterValues(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalToolResult(s.manager.ValidateParameters(resourceType, values))
}

func (s *Server) handleCreateChangeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resourceType := mcp.ParseString(req, "resource_type", "")
	if resourceType == "" {
		return mcp.NewToolResultError("resource_type is required"), nil
	}
	stackName := mcp.ParseString(req, "stack_name", "")
	if stackName == "" {
		return mcp.NewToolResultError("stack_name is required"), nil
	}
	values, err := parseParameterValues(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	intent := cfn.Intent(mcp.ParseString(req, "change_set_type", ""))
	return marshalToolResult(s.manager.CreateChangeSet(ctx, resourceType, stackName, values, intent))
}

func (s *Server) handleDescribeChangeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changeSetName := mcp.ParseString(req, "change_set_name", "")
	if changeSetName == "" {
		return mcp.NewToolResultError("change_set_name is required"), nil
	}
	stackName := mcp.ParseString(req, "stack_name", "")
	if stackName == "" {
		return mcp.NewToolResultError("stack_name is required"), nil
	}
	return marshalToolResult(s.manager.DescribeChangeSet(ctx, changeSetName, stackName))
}

func (s *Server) handleExecuteChangeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changeSetName := mcp.ParseString(req, "change_set_name", "")
	if changeSetName == "" {
		return mcp.NewToolResultError("change_set_name is required"), nil
	}
	stackName := mcp.ParseString(req, "stack_name", "")
	if stackName == "" {
		return mcp.NewToolResultError("stack_name is required"), nil
	}
	wait := mcp.ParseBoolean(req, "wait", false)
	return marshalToolResult(s.manager.ExecuteChangeSet(ctx, changeSetName, stackName, wait))
}

func (s *Server) handleGetStackStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stackName := mcp.ParseString(req, "stack_name", "")
	if stackName == "" {
		return mcp.NewToolResultError("stack_name is required"), nil
	}
	return marshalToolResult(s.manager.GetStackStatus(ctx, stackName))
}

func (s *Server) handleDeleteStack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stackName := mcp.ParseString(req, "stack_name", "")
	if stackName == "" {
		return mcp.NewToolResultError("stack_name is required"), nil
	}
	wait := mcp.ParseBoolean(req, "wait", false)
	return marshalToolResult(s.manager.DeleteStack(ctx, stackName, wait))
}

func (s *Server) handleRefreshTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalToolResult(s.manager.RefreshTemplates(ctx))
}

// --- Helpers ---

// parseParameterValues extracts the "parameters" object argument as string
// values. CloudFormation takes all parameter values as strings, so JSON
// scalars are stringified; nested objects and arrays are rejected.
func parseParameterValues(req mcp.CallToolRequest) (map[string]string, error) {
	raw, ok := req.GetArguments()["parameters"]
	if !ok || raw == nil {
		return map[string]string{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameters must be an object of name/value pairs")
	}

	values := make(map[string]string, len(obj))
	for name, v := range obj {
		switch t := v.(type) {
		case string:
			values[name] = t
		case bool:
			values[name] = strconv.FormatBool(t)
		case float64:
			values[name] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
			values[name] = ""
		default:
			return nil, fmt.Errorf("parameter %q: value must be a string, number, or boolean", name)
		}
	}
	return values, nil
}

func marshalToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
