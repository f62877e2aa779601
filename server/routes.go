package main

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/diff"
	"github.com/meikuraledutech/flow/push"
	"github.com/meikuraledutech/flow/session"
	"github.com/meikuraledutech/flow/validate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// server holds what the HTTP handlers need.
type server struct {
	store     flow.Store
	validator *validate.Validator
	publisher push.Publisher
	logger    *slog.Logger
	metrics   *metrics
}

type connectionRequest struct {
	Connection flow.Connection `json:"connection"`
	Nodes      []flow.Node     `json:"nodes"`
	Edges      []flow.Edge     `json:"edges"`
}

type graphRequest struct {
	Nodes []flow.Node `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

type diffResponse struct {
	Summary diff.Summary           `json:"summary"`
	Diff    diff.Result            `json:"diff"`
	Request *flow.BatchSaveRequest `json:"request"`
}

// errorStatus maps store errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrApplicationRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, flow.ErrUnknownReference),
		errors.Is(err, flow.ErrNodeNotFound),
		errors.Is(err, flow.ErrEdgeNotFound):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func newApp(s *server) *fiber.App {
	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := s.store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := s.store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Applications ──────────────────────────────────────────────────
	app.Get("/apps/:id", func(c fiber.Ctx) error {
		g, err := s.store.LoadGraph(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if g == nil {
			return c.Status(404).JSON(fiber.Map{"error": "application not found"})
		}
		return c.JSON(g)
	})

	app.Delete("/apps/:id", func(c fiber.Ctx) error {
		if err := s.store.DeleteApplication(c.Context(), c.Params("id")); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	app.Post("/apps/:id/batch", func(c fiber.Ctx) error {
		var req flow.BatchSaveRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		req.ApplicationID = c.Params("id")

		timer := prometheus.NewTimer(s.metrics.batchDuration)
		resp, err := s.store.BatchSave(c.Context(), &req)
		timer.ObserveDuration()
		if err != nil {
			status := errorStatus(err)
			result := "error"
			if status != fiber.StatusInternalServerError {
				result = "rejected"
			}
			s.metrics.batchSaves.WithLabelValues(result).Inc()
			s.logger.Warn("batch save failed", "app", req.ApplicationID, "error", err)
			return c.Status(status).JSON(flow.BatchSaveResponse{Success: false, Message: err.Error()})
		}
		s.metrics.batchSaves.WithLabelValues("ok").Inc()
		s.metrics.observeStats(resp.Stats)
		s.logger.Info("batch saved", "app", req.ApplicationID, "version", resp.Version)

		if s.publisher != nil {
			if err := s.publisher.Publish(c.Context(), push.SavedTopic(req.ApplicationID), resp); err != nil {
				s.logger.Warn("publish save failed", "app", req.ApplicationID, "error", err)
			}
		}
		return c.JSON(resp)
	})

	app.Post("/apps/:id/diff", func(c fiber.Ctx) error {
		var body graphRequest
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		appID := c.Params("id")
		rec, err := s.store.LoadGraph(c.Context(), appID)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		snap := diff.Empty()
		if rec != nil {
			g := rec.Graph()
			snap = diff.NewSnapshot(g.Nodes, g.Edges, g.Viewport)
		}
		r := diff.Compute(body.Nodes, body.Edges, snap)
		req, _, err := session.BuildRequest(appID, r, body.Edges)
		if err != nil {
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(diffResponse{Summary: r.Summary(), Diff: r, Request: req})
	})

	app.Put("/apps/:id/viewport", func(c fiber.Ctx) error {
		var vp flow.Viewport
		if err := c.Bind().JSON(&vp); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.store.SaveViewport(c.Context(), c.Params("id"), vp); err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	// ── Versions ──────────────────────────────────────────────────────
	app.Get("/apps/:id/versions", func(c fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		pageSize, _ := strconv.Atoi(c.Query("pageSize", "20"))
		order := flow.SortOrder(c.Query("order", string(flow.Descending)))
		if order != flow.Ascending && order != flow.Descending {
			return c.Status(400).JSON(fiber.Map{"error": "order must be asc or desc"})
		}
		versions, err := s.store.ListVersions(c.Context(), c.Params("id"), page, pageSize, order)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(versions)
	})

	app.Get("/apps/:id/versions/latest", func(c fiber.Ctx) error {
		n, err := s.store.LatestVersion(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"version": n})
	})

	app.Get("/apps/:id/versions/:version", func(c fiber.Ctx) error {
		n, err := strconv.Atoi(c.Params("version"))
		if err != nil || n < 1 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid version"})
		}
		v, err := s.store.GetVersion(c.Context(), c.Params("id"), n)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if v == nil {
			return c.Status(404).JSON(fiber.Map{"error": "version not found"})
		}
		return c.JSON(v)
	})

	// ── Validation ────────────────────────────────────────────────────
	app.Post("/validate/connection", func(c fiber.Ctx) error {
		var body connectionRequest
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		g := &flow.Graph{Nodes: body.Nodes, Edges: body.Edges}
		conn := body.Connection
		res, err := s.validator.ValidateConnection(conn, g.Node(conn.Source), g.Node(conn.Target), g.Edges)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		s.metrics.validations.WithLabelValues(strconv.FormatBool(res.Allowed)).Inc()
		return c.JSON(res)
	})

	app.Get("/handles/matrix", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		return c.SendString(s.validator.Registry().Markdown())
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	return app
}
