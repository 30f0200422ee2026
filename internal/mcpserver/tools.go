package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Accordo MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListDeals = mcp.NewTool("list_deals",
	mcp.WithDescription(
		"List negotiation deals on the Accordo platform, newest first. "+
			"Shows each deal's status, current round, and last known vendor offer."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of deals to return (default 20)")),
	mcp.WithBoolean("include_archived",
		mcp.Description("Include archived deals in the listing")),
)

var ToolGetDeal = mcp.NewTool("get_deal",
	mcp.WithDescription(
		"Get a single negotiation deal by ID, including its status "+
			"(negotiating/accepted/walked_away/escalated), round count, and last vendor offer."),
	mcp.WithString("deal_id",
		mcp.Required(),
		mcp.Description("The deal ID (e.g. 'deal_1a2b...')")),
)

var ToolCreateDeal = mcp.NewTool("create_deal",
	mcp.WithDescription(
		"Create a new vendor negotiation deal. Optionally attach a policy template "+
			"that sets the price bounds, payment term preferences, and decision thresholds."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Short name for the deal (e.g. 'Q3 widget supply')")),
	mcp.WithString("vendor_name",
		mcp.Description("Name of the vendor being negotiated with")),
	mcp.WithString("template_id",
		mcp.Description("Policy template ID. Omit to use the default buying policy.")),
)

var ToolStartNegotiation = mcp.NewTool("start_negotiation",
	mcp.WithDescription(
		"Open a deal's conversation: the buying agent greets the vendor and asks for "+
			"their best price and payment terms. Idempotent if the conversation already started."),
	mcp.WithString("deal_id",
		mcp.Required(),
		mcp.Description("The deal ID")),
)

var ToolSendVendorMessage = mcp.NewTool("send_vendor_message",
	mcp.WithDescription(
		"Relay a vendor's message into a negotiation. The engine extracts any offer "+
			"(unit price and payment terms), decides how to respond, and returns the "+
			"agent's reply. Use this to drive a live negotiation turn by turn."),
	mcp.WithString("deal_id",
		mcp.Required(),
		mcp.Description("The deal ID")),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The vendor's message, verbatim (e.g. 'We can do $95/unit on Net 60')")),
)

var ToolSimulateVendor = mcp.NewTool("simulate_vendor",
	mcp.WithDescription(
		"Run one scripted vendor turn against a deal for testing or demos. "+
			"The simulated vendor concedes price over rounds according to the scenario."),
	mcp.WithString("deal_id",
		mcp.Required(),
		mcp.Description("The deal ID")),
	mcp.WithString("scenario",
		mcp.Description("Vendor behavior: 'HARD' (slow concessions), 'SOFT' (fast concessions, flexible terms), or 'WALK_AWAY' (no movement)"),
		mcp.Enum("HARD", "SOFT", "WALK_AWAY")),
)

var ToolGetTranscript = mcp.NewTool("get_transcript",
	mcp.WithDescription(
		"Get the conversation transcript for a deal: vendor messages and agent replies in order."),
	mcp.WithString("deal_id",
		mcp.Required(),
		mcp.Description("The deal ID")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of messages to return (default 50)")),
)

var ToolExplainDecision = mcp.NewTool("explain_decision",
	mcp.WithDescription(
		"Reveal the decision breakdown behind the agent's latest reply on a deal: "+
			"the extracted vendor offer, price and terms utilities, weighted total, "+
			"the action taken, and the policy thresholds that drove it."),
	mcp.WithString("deal_id",
		mcp.Required(),
		mcp.Description("The deal ID")),
)

var ToolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription(
		"List negotiation policy templates: named configurations of price bounds, "+
			"payment term utilities, weights, and accept/walk-away thresholds."),
)
