package service

import (
	"context"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/ingest"
	"github.com/theapemachine/mcgraph/pkg/metrics"
	"github.com/theapemachine/mcgraph/pkg/reconstruct"
	"github.com/theapemachine/mcgraph/pkg/types"
)

/*
ModelCardServer exposes the ingestion and reconstruction engines over
REST. Handlers only translate between HTTP and engine calls.
*/
type ModelCardServer struct {
	app           *fiber.App
	store         graph.Store
	ingester      *ingest.Engine
	reconstructor *reconstruct.Engine
}

func NewModelCardServer(
	store graph.Store, ingester *ingest.Engine, reconstructor *reconstruct.Engine,
) *ModelCardServer {
	srv := &ModelCardServer{
		app: fiber.New(fiber.Config{
			AppName:      "mcgraph",
			ServerHeader: "mcgraph",
			ErrorHandler: errorHandler,
		}),
		store:         store,
		ingester:      ingester,
		reconstructor: reconstructor,
	}

	srv.routes()
	return srv
}

/*
App gives tests and embedding applications access to the fiber app.
*/
func (srv *ModelCardServer) App() *fiber.App {
	return srv.app
}

/*
ExposeMetrics serves the engine counters at /metrics.
*/
func (srv *ModelCardServer) ExposeMetrics(m *metrics.EngineMetrics) {
	srv.app.Get("/metrics", func(ctx fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(m.Snapshot())
	})
}

func (srv *ModelCardServer) Start(addr string) error {
	log.Info("REST server listening", "addr", addr)
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *ModelCardServer) Shutdown(ctx context.Context) error {
	return srv.app.ShutdownWithContext(ctx)
}

func (srv *ModelCardServer) routes() {
	srv.app.Use(logger.New())

	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/healthz", srv.handleHealth)

	srv.app.Post("/modelcard", srv.handleIngest)
	srv.app.Post("/modelcard/id", srv.handleGeneratePID)
	srv.app.Head("/modelcard/:id", srv.handleHead)
	srv.app.Get("/modelcard/:id", srv.handleReconstruct)
	srv.app.Put("/modelcard/:id", srv.handleUpdate)
	srv.app.Get("/modelcard/:id/linkset", srv.handleHead)
	srv.app.Get("/modelcard/:id/download_url", srv.handleModelLocation)
	srv.app.Put("/modelcard/:id/location", srv.handleSetModelLocation)
	srv.app.Get("/modelcard/:id/deployments", srv.handleDeployments)

	srv.app.Get("/modelcards", srv.handleList)
	srv.app.Get("/modelcards/search", srv.handleSearch)

	srv.app.Post("/datasheet", srv.handleDatasheet)
	srv.app.Post("/device", srv.handleDevice)
	srv.app.Post("/user", srv.handleUser)
	srv.app.Post("/deployment", srv.handleDeployment)
	srv.app.Post("/experiment", srv.handleExperiment)
	srv.app.Post("/edge", srv.handleEdge)
}

func (srv *ModelCardServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *ModelCardServer) handleHealth(ctx fiber.Ctx) error {
	if err := srv.store.Ping(ctx); err != nil {
		log.Warn("graph store unreachable", "error", err)
		return ctx.SendStatus(fiber.StatusServiceUnavailable)
	}

	return ctx.SendString("OK")
}

func (srv *ModelCardServer) handleIngest(ctx fiber.Ctx) error {
	var card types.ModelCard

	if err := ctx.Bind().Body(&card); err != nil {
		return badRequest(err)
	}

	existed, id, err := srv.ingester.Ingest(ctx, &card)

	if err != nil {
		return err
	}

	if existed {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message":       "Model card already exists",
			"model_card_id": id,
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Successfully uploaded the model card",
		"model_card_id": id,
	})
}

func (srv *ModelCardServer) handleGeneratePID(ctx fiber.Ctx) error {
	var request struct {
		Author  string `json:"author"`
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(err)
	}

	pid, exists, err := srv.ingester.GeneratePID(ctx, request.Author, request.Name, request.Version)

	if err != nil {
		return err
	}

	if exists {
		log.Warn("model id already exists", "pid", pid)
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"pid": pid})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"pid": pid})
}

func (srv *ModelCardServer) handleReconstruct(ctx fiber.Ctx) error {
	doc, err := srv.reconstructor.Reconstruct(ctx, ctx.Params("id"))

	if err != nil {
		return err
	}

	if link, ok := srv.reconstructor.LinkHeaders(doc)["Link"]; ok {
		ctx.Set("Link", link)
	}

	return ctx.Status(fiber.StatusOK).JSON(doc)
}

/*
handleHead answers with the link headers only.
*/
func (srv *ModelCardServer) handleHead(ctx fiber.Ctx) error {
	doc, err := srv.reconstructor.Reconstruct(ctx, ctx.Params("id"))

	if err != nil {
		return err
	}

	for key, value := range srv.reconstructor.LinkHeaders(doc) {
		// fasthttp derives the length from the empty body.
		if key == fiber.HeaderContentLength {
			continue
		}

		ctx.Set(key, value)
	}

	ctx.Status(fiber.StatusOK)
	return nil
}

func (srv *ModelCardServer) handleUpdate(ctx fiber.Ctx) error {
	var card types.ModelCard

	if err := ctx.Bind().Body(&card); err != nil {
		return badRequest(err)
	}

	id, err := srv.ingester.Update(ctx, ctx.Params("id"), &card)

	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Successfully updated the model card",
		"model_card_id": id,
	})
}

func (srv *ModelCardServer) handleModelLocation(ctx fiber.Ctx) error {
	location, err := srv.reconstructor.ModelLocation(ctx, ctx.Params("id"))

	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(location)
}

func (srv *ModelCardServer) handleSetModelLocation(ctx fiber.Ctx) error {
	var request struct {
		Location string `json:"location"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(err)
	}

	if err := srv.reconstructor.SetModelLocation(ctx, ctx.Params("id"), request.Location); err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Model location updated successfully"})
}

func (srv *ModelCardServer) handleDeployments(ctx fiber.Ctx) error {
	deployments, err := srv.reconstructor.Deployments(ctx, ctx.Params("id"))

	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(deployments)
}

func (srv *ModelCardServer) handleList(ctx fiber.Ctx) error {
	limit := 0

	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)

		if err != nil {
			return badRequest(err)
		}

		limit = parsed
	}

	summaries, err := srv.reconstructor.ListAll(ctx, limit)

	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(summaries)
}

func (srv *ModelCardServer) handleSearch(ctx fiber.Ctx) error {
	results, err := srv.reconstructor.Search(ctx, ctx.Query("q"))

	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(results)
}

func (srv *ModelCardServer) handleDatasheet(ctx fiber.Ctx) error {
	var datasheet types.Datasheet

	if err := ctx.Bind().Body(&datasheet); err != nil {
		return badRequest(err)
	}

	created, err := srv.ingester.AddDatasheet(ctx, &datasheet)

	if err != nil {
		return err
	}

	return ctx.Status(createdStatus(created)).JSON(fiber.Map{"message": "Successfully uploaded the datasheet"})
}

func (srv *ModelCardServer) handleDevice(ctx fiber.Ctx) error {
	var device types.Device

	if err := ctx.Bind().Body(&device); err != nil {
		return badRequest(err)
	}

	if err := srv.ingester.AddDevice(ctx, &device); err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Device registered successfully"})
}

func (srv *ModelCardServer) handleUser(ctx fiber.Ctx) error {
	var user types.User

	if err := ctx.Bind().Body(&user); err != nil {
		return badRequest(err)
	}

	if err := srv.ingester.AddUser(ctx, &user); err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User registered successfully"})
}

func (srv *ModelCardServer) handleDeployment(ctx fiber.Ctx) error {
	var deployment types.Deployment

	if err := ctx.Bind().Body(&deployment); err != nil {
		return badRequest(err)
	}

	created, err := srv.ingester.AddDeployment(ctx, &deployment)

	if err != nil {
		return err
	}

	return ctx.Status(createdStatus(created)).JSON(fiber.Map{"deployment_id": deployment.ID, "created": created})
}

func (srv *ModelCardServer) handleExperiment(ctx fiber.Ctx) error {
	var experiment types.Experiment

	if err := ctx.Bind().Body(&experiment); err != nil {
		return badRequest(err)
	}

	created, err := srv.ingester.AddExperiment(ctx, &experiment)

	if err != nil {
		return err
	}

	return ctx.Status(createdStatus(created)).JSON(fiber.Map{"experiment_id": experiment.ID, "created": created})
}

func (srv *ModelCardServer) handleEdge(ctx fiber.Ctx) error {
	var request struct {
		Source types.NodeRef `json:"source"`
		Target types.NodeRef `json:"target"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(err)
	}

	relType, created, err := srv.ingester.Link(ctx, request.Source, request.Target)

	if err != nil {
		return err
	}

	return ctx.Status(createdStatus(created)).JSON(fiber.Map{
		"relationship_type": relType,
		"created":           created,
	})
}

func createdStatus(created bool) int {
	if created {
		return fiber.StatusCreated
	}

	return fiber.StatusOK
}

func badRequest(err error) error {
	return errors.Validation("invalid request body: %v", err)
}

/*
errorHandler maps engine errors onto status codes. Store failures keep
their generic message; the cause only goes to the log.
*/
func errorHandler(ctx fiber.Ctx, err error) error {
	var typed *errors.Error

	if !errors.As(err, &typed) {
		var fiberErr *fiber.Error

		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		log.Error("request failed", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	status := StatusOf(typed.Kind)

	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", "path", ctx.Path(), "step", typed.Step, "error", typed.Unwrap())
	} else {
		log.Debug("request rejected", "path", ctx.Path(), "kind", typed.Kind, "error", typed.Message)
	}

	return ctx.Status(status).JSON(fiber.Map{"error": typed})
}

/*
StatusOf is the HTTP status for an error kind.
*/
func StatusOf(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return fiber.StatusBadRequest
	case errors.KindNotFound:
		return fiber.StatusNotFound
	case errors.KindAlreadyExists:
		return fiber.StatusConflict
	case errors.KindRelationshipNotPermitted:
		return fiber.StatusUnprocessableEntity
	case errors.KindEmbedding:
		return fiber.StatusBadGateway
	case errors.KindStore:
		return fiber.StatusServiceUnavailable
	}

	return fiber.StatusInternalServerError
}
