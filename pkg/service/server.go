// Package service exposes the filter hooks over HTTP so a chat host can
// call them like an Open WebUI pipelines server.
package service

import (
	"context"

	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/schmidt-silas/mem0-for-owui/pkg/filter"
	"github.com/schmidt-silas/mem0-for-owui/pkg/service/sse"
)

/*
FilterServer is safe for concurrent use: the filter serializes its own
client construction and the broker is internally synchronized.
*/
type FilterServer struct {
	app    *fiber.App
	filter *filter.Filter
	broker *sse.Broker
}

// NewFilterServer constructs a server around the supplied filter. Status
// events emitted by the hooks are published on the /events SSE stream.
func NewFilterServer(f *filter.Filter, broker *sse.Broker) *FilterServer {
	if broker == nil {
		broker = sse.NewBroker()
	}

	srv := &FilterServer{
		app: fiber.New(fiber.Config{
			AppName:      "mem0-filter",
			ServerHeader: "Mem0-Filter-Server",
		}),
		filter: f,
		broker: broker,
	}

	srv.registerRoutes()

	return srv
}

// Broker returns the status event broker so callers can wire it into the
// filter's notifier.
func (srv *FilterServer) Broker() *sse.Broker {
	return srv.broker
}

// BrokerNotifier adapts the SSE broker to the filter's Notifier interface
func (srv *FilterServer) BrokerNotifier() filter.Notifier {
	return filter.NotifierFunc(func(ctx context.Context, event filter.StatusEvent) {
		srv.broker.Publish(event)
	})
}

// Start blocks serving on addr
func (srv *FilterServer) Start(addr string) error {
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully stops the server and disconnects event subscribers
func (srv *FilterServer) Shutdown() error {
	srv.broker.Close()
	return srv.app.Shutdown()
}

func (srv *FilterServer) registerRoutes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip logging for the /events endpoint to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/events"
		},
	}), healthcheck.NewHealthChecker())

	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/events", srv.handleEvents)
	srv.app.Get("/v1/filter", srv.handleMeta)
	srv.app.Post("/v1/filter/toggle", srv.handleToggle)
	srv.app.Post("/v1/filter/inlet", srv.handleInlet)
	srv.app.Post("/v1/filter/outlet", srv.handleOutlet)
}

func (srv *FilterServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *FilterServer) handleMeta(ctx fiber.Ctx) error {
	return ctx.JSON(srv.filter.Meta())
}

func (srv *FilterServer) handleToggle(ctx fiber.Ctx) error {
	message := srv.filter.Toggle()
	return ctx.JSON(fiber.Map{"message": message})
}

func (srv *FilterServer) handleEvents(ctx fiber.Ctx) error {
	return fiberadaptor.HTTPHandler(srv.broker)(ctx)
}

// hookRequest mirrors the payload a pipelines-style host sends to a filter.
type hookRequest struct {
	Body filter.Body  `json:"body"`
	User *filter.User `json:"user"`
}

func (srv *FilterServer) handleInlet(ctx fiber.Ctx) error {
	var request hookRequest

	if err := ctx.Bind().Body(&request); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	body := srv.filter.Inlet(ctx.Context(), &request.Body, request.User)
	return ctx.JSON(body)
}

func (srv *FilterServer) handleOutlet(ctx fiber.Ctx) error {
	var request hookRequest

	if err := ctx.Bind().Body(&request); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	body := srv.filter.Outlet(ctx.Context(), &request.Body, request.User)
	return ctx.JSON(body)
}
