package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Accordo tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("accordo", "1.0.0")
	client := NewAccordoClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListDeals, h.HandleListDeals)
	s.AddTool(ToolGetDeal, h.HandleGetDeal)
	s.AddTool(ToolCreateDeal, h.HandleCreateDeal)
	s.AddTool(ToolStartNegotiation, h.HandleStartNegotiation)
	s.AddTool(ToolSendVendorMessage, h.HandleSendVendorMessage)
	s.AddTool(ToolSimulateVendor, h.HandleSimulateVendor)
	s.AddTool(ToolGetTranscript, h.HandleGetTranscript)
	s.AddTool(ToolExplainDecision, h.HandleExplainDecision)
	s.AddTool(ToolListTemplates, h.HandleListTemplates)

	return s
}
