package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/store"
	"github.com/i474232898/weather-region-dashboard/internal/surface"
)

var validate = validator.New()

// Refresher schedules a sync run.
type Refresher interface {
	Refresh()
}

// Dependencies are the components the HTTP layer drives.
type Dependencies struct {
	Store     *store.RegionStore
	Surface   *surface.Reconciler
	Refresher Refresher
	// Timeline returns the current slider window.
	Timeline func() dashboard.Timeline
	// Gatherer backs /metrics; nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/state", func(c *fiber.Ctx) error {
		data, err := dashboard.EncodeSnapshot(deps.Store.Snapshot())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to encode state")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	})

	v1.Put("/time-range", func(c *fiber.Ctx) error {
		var req timeRangeRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		r := dashboard.TimeRange{Start: req.Start, End: req.End}
		if deps.Timeline != nil {
			if tl := deps.Timeline(); !tl.Contains(r) {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf(
					"time range must lie within %s and %s",
					tl.Start.Format(time.RFC3339), tl.End.Format(time.RFC3339)))
			}
		}
		if err := deps.Store.SetTimeRange(r); err != nil {
			return mapStoreError(err)
		}
		return c.JSON(r)
	})

	v1.Get("/timeline", func(c *fiber.Ctx) error {
		if deps.Timeline == nil {
			return fiber.NewError(fiber.StatusNotFound, "timeline not configured")
		}
		return c.JSON(deps.Timeline())
	})

	v1.Post("/surface/events", func(c *fiber.Ctx) error {
		var req surfaceEventRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		ev, err := req.toEvent()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := deps.Surface.Apply(ev)
		if err != nil {
			return mapStoreError(err)
		}
		return c.JSON(res)
	})

	v1.Get("/surface/shapes", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"shapes": deps.Surface.Shapes()})
	})

	v1.Put("/regions/active", func(c *fiber.Ctx) error {
		var req activeRegionRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		id := ""
		if req.ID != nil {
			id = *req.ID
		}
		deps.Store.SetActiveRegion(id)
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Put("/regions/:id/name", func(c *fiber.Ctx) error {
		var req renameRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		deps.Store.UpdateRegionName(c.Params("id"), req.Name)
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Put("/regions/:id/rules", func(c *fiber.Ctx) error {
		var req rulesRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		if err := deps.Store.UpdateRegionRules(c.Params("id"), req.Rules); err != nil {
			return mapStoreError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Delete("/regions/:id", func(c *fiber.Ctx) error {
		deps.Store.DeleteRegion(c.Params("id"))
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/drawing", func(c *fiber.Ctx) error {
		var req drawingRequest
		if len(c.Body()) > 0 {
			if err := bindJSON(c, &req); err != nil {
				return err
			}
		}
		deps.Store.ToggleDrawing(req.Drawing)
		return c.JSON(fiber.Map{"isDrawing": deps.Store.Snapshot().IsDrawing})
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if deps.Refresher == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "sync engine not available")
		}
		deps.Refresher.Refresh()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "scheduled"})
	})
}

// bindJSON parses the body into req and validates it.
func bindJSON(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// mapStoreError converts domain errors into HTTP errors.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidGeometry),
		errors.Is(err, store.ErrInvalidTimeRange),
		errors.Is(err, store.ErrInvalidRules):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, surface.ErrUnknownEvent):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to apply change")
	}
}
