package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *AccordoClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *AccordoClient) *Handlers {
	return &Handlers{client: client}
}

// HandleListDeals lists negotiation deals.
func (h *Handlers) HandleListDeals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	includeArchived := req.GetBool("include_archived", false)

	raw, err := h.client.ListDeals(ctx, limit, includeArchived)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list deals: %v", err)), nil
	}

	text, err := formatDealList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse deals: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetDeal returns a single deal.
func (h *Handlers) HandleGetDeal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dealID := req.GetString("deal_id", "")
	if dealID == "" {
		return mcp.NewToolResultError("deal_id is required"), nil
	}

	raw, err := h.client.GetDeal(ctx, dealID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get deal: %v", err)), nil
	}

	return mcp.NewToolResultText(formatDeal(raw)), nil
}

// HandleCreateDeal creates a new deal.
func (h *Handlers) HandleCreateDeal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	vendorName := req.GetString("vendor_name", "")
	templateID := req.GetString("template_id", "")

	raw, err := h.client.CreateDeal(ctx, name, vendorName, templateID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create deal: %v", err)), nil
	}

	return mcp.NewToolResultText("Deal created.\n\n" + formatDeal(raw)), nil
}

// HandleStartNegotiation opens a deal's conversation.
func (h *Handlers) HandleStartNegotiation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dealID := req.GetString("deal_id", "")
	if dealID == "" {
		return mcp.NewToolResultError("deal_id is required"), nil
	}

	raw, err := h.client.StartConversation(ctx, dealID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start negotiation: %v", err)), nil
	}

	text, err := formatTurnResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse result: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleSendVendorMessage processes one vendor turn.
func (h *Handlers) HandleSendVendorMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dealID := req.GetString("deal_id", "")
	if dealID == "" {
		return mcp.NewToolResultError("deal_id is required"), nil
	}
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	raw, err := h.client.SendVendorMessage(ctx, dealID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to process message: %v", err)), nil
	}

	out, err := formatTurnResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse result: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// HandleSimulateVendor runs one scripted vendor turn.
func (h *Handlers) HandleSimulateVendor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dealID := req.GetString("deal_id", "")
	if dealID == "" {
		return mcp.NewToolResultError("deal_id is required"), nil
	}
	scenario := req.GetString("scenario", "")

	raw, err := h.client.Simulate(ctx, dealID, scenario)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to simulate: %v", err)), nil
	}

	out, err := formatTurnResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse result: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// HandleGetTranscript returns the deal transcript.
func (h *Handlers) HandleGetTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dealID := req.GetString("deal_id", "")
	if dealID == "" {
		return mcp.NewToolResultError("deal_id is required"), nil
	}
	limit := req.GetInt("limit", 50)

	raw, err := h.client.ListMessages(ctx, dealID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get transcript: %v", err)), nil
	}

	text, err := formatTranscript(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transcript: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleExplainDecision reveals the latest decision breakdown.
func (h *Handlers) HandleExplainDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dealID := req.GetString("deal_id", "")
	if dealID == "" {
		return mcp.NewToolResultError("deal_id is required"), nil
	}

	raw, err := h.client.GetExplainability(ctx, dealID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get explainability: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleListTemplates lists policy templates.
func (h *Handlers) HandleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListTemplates(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list templates: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- Formatting helpers ---

type dealInfo struct {
	ID         string
	Name       string
	VendorName string
	Status     string
	Round      float64
	LastOffer  string
}

func formatDealList(raw json.RawMessage) (string, error) {
	var wrapper struct {
		Deals []map[string]any `json:"deals"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Deals == nil {
		if err := json.Unmarshal(raw, &wrapper.Deals); err != nil {
			return "", fmt.Errorf("unexpected deals response format")
		}
	}

	if len(wrapper.Deals) == 0 {
		return "No deals found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d deal(s):\n\n", len(wrapper.Deals))
	for i, m := range wrapper.Deals {
		d := parseDeal(m)
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, d.Name, d.ID)
		fmt.Fprintf(&sb, "   Status: %s | Round: %.0f\n", d.Status, d.Round)
		if d.VendorName != "" {
			fmt.Fprintf(&sb, "   Vendor: %s\n", d.VendorName)
		}
		if d.LastOffer != "" {
			fmt.Fprintf(&sb, "   Last offer: %s\n", d.LastOffer)
		}
		if i < len(wrapper.Deals)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatDeal(raw json.RawMessage) string {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return string(raw)
	}
	m := resp
	if d, ok := resp["deal"].(map[string]any); ok {
		m = d
	}
	d := parseDeal(m)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Deal: %s\n", d.Name)
	fmt.Fprintf(&sb, "  ID: %s\n", d.ID)
	fmt.Fprintf(&sb, "  Status: %s\n", d.Status)
	fmt.Fprintf(&sb, "  Round: %.0f\n", d.Round)
	if d.VendorName != "" {
		fmt.Fprintf(&sb, "  Vendor: %s\n", d.VendorName)
	}
	if d.LastOffer != "" {
		fmt.Fprintf(&sb, "  Last offer: %s\n", d.LastOffer)
	}
	return sb.String()
}

func parseDeal(m map[string]any) dealInfo {
	d := dealInfo{
		ID:         getString(m, "id"),
		Name:       getString(m, "name"),
		VendorName: getString(m, "vendorName"),
		Status:     getString(m, "status"),
	}
	if v, ok := getFloat(m, "round"); ok {
		d.Round = v
	}
	if offer, ok := m["lastOffer"].(map[string]any); ok {
		d.LastOffer = describeOffer(offer)
	}
	return d
}

func describeOffer(m map[string]any) string {
	var parts []string
	if price, ok := getFloat(m, "unitPrice"); ok {
		parts = append(parts, fmt.Sprintf("$%g/unit", price))
	}
	if term := getString(m, "paymentTerm"); term != "" {
		parts = append(parts, term)
	}
	return strings.Join(parts, " on ")
}

func formatTurnResult(raw json.RawMessage) (string, error) {
	var resp struct {
		Blocked     bool             `json:"blocked"`
		BlockReason string           `json:"blockReason"`
		Deal        map[string]any   `json:"deal"`
		Messages    []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	if resp.Blocked {
		fmt.Fprintf(&sb, "Turn blocked: %s\n\n", resp.BlockReason)
	}
	for _, m := range resp.Messages {
		role := getString(m, "role")
		content := getString(m, "content")
		fmt.Fprintf(&sb, "[%s] %s\n", role, content)
	}
	if resp.Deal != nil {
		d := parseDeal(resp.Deal)
		fmt.Fprintf(&sb, "\nDeal status: %s (round %.0f)\n", d.Status, d.Round)
	}
	if sb.Len() == 0 {
		return formatJSON(raw), nil
	}
	return sb.String(), nil
}

func formatTranscript(raw json.RawMessage) (string, error) {
	var resp struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Messages == nil {
		if err := json.Unmarshal(raw, &resp.Messages); err != nil {
			return "", fmt.Errorf("unexpected messages response format")
		}
	}

	if len(resp.Messages) == 0 {
		return "No messages yet.", nil
	}

	var sb strings.Builder
	for _, m := range resp.Messages {
		role := getString(m, "role")
		content := getString(m, "content")
		fmt.Fprintf(&sb, "[%s] %s\n", role, content)
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
