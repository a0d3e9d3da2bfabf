package tools

// Model card tools expose the ingestion and reconstruction engines to MCP
// clients. Engine failures are returned as tool errors carrying the error
// kind, so a missing card is an ordinary answer rather than a protocol
// failure.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/ingest"
	"github.com/theapemachine/mcgraph/pkg/reconstruct"
	"github.com/theapemachine/mcgraph/pkg/types"
)

type ModelCardTools struct {
	ingester      *ingest.Engine
	reconstructor *reconstruct.Engine
}

func NewModelCardTools(ingester *ingest.Engine, reconstructor *reconstruct.Engine) *ModelCardTools {
	return &ModelCardTools{
		ingester:      ingester,
		reconstructor: reconstructor,
	}
}

/*
NewServer builds an MCP server with every model card tool registered.
*/
func NewServer(version string, tools *ModelCardTools) *server.MCPServer {
	srv := server.NewMCPServer(
		"mcgraph",
		version,
		server.WithLogging(),
		server.WithToolCapabilities(true),
	)

	tools.Register(srv)
	return srv
}

func (tools *ModelCardTools) Register(srv *server.MCPServer) {
	srv.AddTool(buildIngestTool(), tools.handleIngest)
	srv.AddTool(buildUpdateTool(), tools.handleUpdate)
	srv.AddTool(buildGetTool(), tools.handleGet)
	srv.AddTool(buildLinksetTool(), tools.handleLinkset)
	srv.AddTool(buildSearchTool(), tools.handleSearch)
	srv.AddTool(buildListTool(), tools.handleList)
	srv.AddTool(buildLocationTool(), tools.handleLocation)
	srv.AddTool(buildSetLocationTool(), tools.handleSetLocation)
	srv.AddTool(buildDeploymentsTool(), tools.handleDeployments)
	srv.AddTool(buildGeneratePIDTool(), tools.handleGeneratePID)
	srv.AddTool(buildEntityTool("add_datasheet", "datasheet", "Stores a datasheet or fills in a placeholder created by ingestion."), tools.handleDatasheet)
	srv.AddTool(buildEntityTool("add_device", "device", "Registers a new edge device."), tools.handleDevice)
	srv.AddTool(buildEntityTool("add_user", "user", "Registers a new user."), tools.handleUser)
	srv.AddTool(buildEntityTool("add_deployment", "deployment", "Records a deployment of an existing model."), tools.handleDeployment)
	srv.AddTool(buildEntityTool("add_experiment", "experiment", "Records an experiment and its submitting user."), tools.handleExperiment)
	srv.AddTool(buildEdgeTool(), tools.handleEdge)
}

func buildIngestTool() mcp.Tool {
	return mcp.NewTool(
		"ingest_model_card",
		mcp.WithDescription("Stores a model card and its sub-entities. Returns the card id and whether it already existed."),
		mcp.WithObject("model_card",
			mcp.Description("The model card document"),
			mcp.Required(),
		),
	)
}

func buildUpdateTool() mcp.Tool {
	return mcp.NewTool(
		"update_model_card",
		mcp.WithDescription("Overwrites a stored model card located by name, version, author, input and output data."),
		mcp.WithString("id",
			mcp.Description("Id of the card being updated; optional"),
		),
		mcp.WithObject("model_card",
			mcp.Description("The updated model card document"),
			mcp.Required(),
		),
	)
}

func buildGetTool() mcp.Tool {
	return mcp.NewTool(
		"get_model_card",
		mcp.WithDescription("Reconstructs a model card with its model, bias and explainability analyses."),
		mcp.WithString("id",
			mcp.Description("Model card id"),
			mcp.Required(),
		),
	)
}

func buildLinksetTool() mcp.Tool {
	return mcp.NewTool(
		"get_model_card_linkset",
		mcp.WithDescription("Returns the link headers of a model card."),
		mcp.WithString("id",
			mcp.Description("Model card id"),
			mcp.Required(),
		),
	)
}

func buildSearchTool() mcp.Tool {
	return mcp.NewTool(
		"search_model_cards",
		mcp.WithDescription("Full-text search over model card names, descriptions and keywords."),
		mcp.WithString("query",
			mcp.Description("Search text"),
			mcp.Required(),
		),
	)
}

func buildListTool() mcp.Tool {
	return mcp.NewTool(
		"list_model_cards",
		mcp.WithDescription("Lists stored model cards."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of cards (default 1000)"),
		),
	)
}

func buildLocationTool() mcp.Tool {
	return mcp.NewTool(
		"get_model_location",
		mcp.WithDescription("Returns the download URL of a card's model."),
		mcp.WithString("id",
			mcp.Description("Model card id"),
			mcp.Required(),
		),
	)
}

func buildSetLocationTool() mcp.Tool {
	return mcp.NewTool(
		"set_model_location",
		mcp.WithDescription("Points a card's model at a new absolute URL."),
		mcp.WithString("id",
			mcp.Description("Model card id"),
			mcp.Required(),
		),
		mcp.WithString("location",
			mcp.Description("Absolute URL of the model artifact"),
			mcp.Required(),
		),
	)
}

func buildDeploymentsTool() mcp.Tool {
	return mcp.NewTool(
		"get_model_deployments",
		mcp.WithDescription("Lists a card's deployments with their device, experiment and user, newest first."),
		mcp.WithString("id",
			mcp.Description("Model card id"),
			mcp.Required(),
		),
	)
}

func buildGeneratePIDTool() mcp.Tool {
	return mcp.NewTool(
		"generate_model_id",
		mcp.WithDescription("Derives the persistent id for an author, name and version and reports whether it is taken."),
		mcp.WithString("author", mcp.Required()),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("version", mcp.Required()),
	)
}

func buildEntityTool(name, argument, description string) mcp.Tool {
	return mcp.NewTool(
		name,
		mcp.WithDescription(description),
		mcp.WithObject(argument,
			mcp.Description("The "+argument+" document"),
			mcp.Required(),
		),
	)
}

func buildEdgeTool() mcp.Tool {
	return mcp.NewTool(
		"create_edge",
		mcp.WithDescription("Connects two existing nodes; the relationship type follows from their kinds."),
		mcp.WithString("source_kind", mcp.Required()),
		mcp.WithString("source_id", mcp.Required()),
		mcp.WithString("target_kind", mcp.Required()),
		mcp.WithString("target_id", mcp.Required()),
	)
}

func (tools *ModelCardTools) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var card types.ModelCard

	if err := decodeArgument(req, "model_card", &card); err != nil {
		return failure(err)
	}

	existed, id, err := tools.ingester.Ingest(ctx, &card)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"model_card_id": id, "existed": existed})
}

func (tools *ModelCardTools) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var card types.ModelCard

	if err := decodeArgument(req, "model_card", &card); err != nil {
		return failure(err)
	}

	id, err := tools.ingester.Update(ctx, req.GetString("id", ""), &card)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"model_card_id": id})
}

func (tools *ModelCardTools) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := tools.reconstructor.Reconstruct(ctx, id)

	if err != nil {
		return failure(err)
	}

	return success(doc)
}

func (tools *ModelCardTools) handleLinkset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := tools.reconstructor.Reconstruct(ctx, id)

	if err != nil {
		return failure(err)
	}

	return success(tools.reconstructor.LinkHeaders(doc))
}

func (tools *ModelCardTools) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := tools.reconstructor.Search(ctx, req.GetString("query", ""))

	if err != nil {
		return failure(err)
	}

	return success(results)
}

func (tools *ModelCardTools) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := tools.reconstructor.ListAll(ctx, req.GetInt("limit", 0))

	if err != nil {
		return failure(err)
	}

	return success(summaries)
}

func (tools *ModelCardTools) handleLocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	location, err := tools.reconstructor.ModelLocation(ctx, id)

	if err != nil {
		return failure(err)
	}

	return success(location)
}

func (tools *ModelCardTools) handleSetLocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err = tools.reconstructor.SetModelLocation(ctx, id, req.GetString("location", "")); err != nil {
		return failure(err)
	}

	return success(map[string]any{"model_card_id": id, "location": req.GetString("location", "")})
}

func (tools *ModelCardTools) handleDeployments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	deployments, err := tools.reconstructor.Deployments(ctx, id)

	if err != nil {
		return failure(err)
	}

	return success(deployments)
}

func (tools *ModelCardTools) handleGeneratePID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, exists, err := tools.ingester.GeneratePID(ctx,
		req.GetString("author", ""),
		req.GetString("name", ""),
		req.GetString("version", ""),
	)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"pid": pid, "exists": exists})
}

func (tools *ModelCardTools) handleDatasheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var datasheet types.Datasheet

	if err := decodeArgument(req, "datasheet", &datasheet); err != nil {
		return failure(err)
	}

	created, err := tools.ingester.AddDatasheet(ctx, &datasheet)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"id": datasheet.ID, "created": created})
}

func (tools *ModelCardTools) handleDevice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var device types.Device

	if err := decodeArgument(req, "device", &device); err != nil {
		return failure(err)
	}

	if err := tools.ingester.AddDevice(ctx, &device); err != nil {
		return failure(err)
	}

	return success(map[string]any{"device_id": device.ID, "created": true})
}

func (tools *ModelCardTools) handleUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var user types.User

	if err := decodeArgument(req, "user", &user); err != nil {
		return failure(err)
	}

	if err := tools.ingester.AddUser(ctx, &user); err != nil {
		return failure(err)
	}

	return success(map[string]any{"user_id": user.ID, "created": true})
}

func (tools *ModelCardTools) handleDeployment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var deployment types.Deployment

	if err := decodeArgument(req, "deployment", &deployment); err != nil {
		return failure(err)
	}

	created, err := tools.ingester.AddDeployment(ctx, &deployment)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"deployment_id": deployment.ID, "created": created})
}

func (tools *ModelCardTools) handleExperiment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var experiment types.Experiment

	if err := decodeArgument(req, "experiment", &experiment); err != nil {
		return failure(err)
	}

	created, err := tools.ingester.AddExperiment(ctx, &experiment)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"experiment_id": experiment.ID, "created": created})
}

func (tools *ModelCardTools) handleEdge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	relType, created, err := tools.ingester.Link(ctx,
		types.NodeRef{Kind: req.GetString("source_kind", ""), ID: req.GetString("source_id", "")},
		types.NodeRef{Kind: req.GetString("target_kind", ""), ID: req.GetString("target_id", "")},
	)

	if err != nil {
		return failure(err)
	}

	return success(map[string]any{"relationship_type": relType, "created": created})
}

/*
decodeArgument round-trips one object argument through JSON so the typed
documents apply their own decoding rules. Clients that send the object as
a JSON string are accepted too.
*/
func decodeArgument(req mcp.CallToolRequest, key string, out any) error {
	raw, ok := req.GetArguments()[key]

	if !ok || raw == nil {
		return errors.Validation("%s is required", key)
	}

	var data []byte

	switch v := raw.(type) {
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)

		if err != nil {
			return errors.Validation("%s is not a valid object: %v", key, err)
		}

		data = encoded
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Validation("%s is not a valid object: %v", key, err)
	}

	return nil
}

func success(value any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(value)

	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(b)), nil
}

func failure(err error) (*mcp.CallToolResult, error) {
	kind := errors.KindOf(err)

	if kind == errors.KindStore || kind == 0 {
		log.Error("tool call failed", "error", err)
	} else {
		log.Debug("tool call rejected", "kind", kind, "error", err)
	}

	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", kind, err.Error())), nil
}
