package httpapi

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"k8s.io/klog/v2"

	"github.com/i474232898/surge-forecast/internal/common"
	"github.com/i474232898/surge-forecast/internal/export"
	"github.com/i474232898/surge-forecast/internal/forecast"
	"github.com/i474232898/surge-forecast/internal/recommend"
	"github.com/i474232898/surge-forecast/internal/scenario"
	"github.com/i474232898/surge-forecast/internal/store"
	"github.com/i474232898/surge-forecast/internal/surge"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *forecast.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"sessions": service.Sessions()})
	})

	fc := v1.Group("/forecast")

	fc.Get("/series", func(c *fiber.Ctx) error {
		params, err := parseSessionQuery(c)
		if err != nil {
			return err
		}
		series, err := service.Series(c.UserContext(), params)
		if err != nil {
			return toFiberError(err, "failed to generate forecast series")
		}
		return c.JSON(fiber.Map{
			"session": params,
			"series":  series,
		})
	})

	fc.Get("/metrics", func(c *fiber.Ctx) error {
		params, err := parseSessionQuery(c)
		if err != nil {
			return err
		}
		m, err := service.HeadlineMetrics(c.UserContext(), params)
		if err != nil {
			return toFiberError(err, "failed to compute headline metrics")
		}
		return c.JSON(m)
	})

	fc.Get("/runs", func(c *fiber.Ctx) error {
		params, err := parseSessionQuery(c)
		if err != nil {
			return err
		}
		runs, err := service.History(params)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast runs for requested session")
			}
			return toFiberError(err, "failed to list forecast runs")
		}
		return c.JSON(fiber.Map{
			"session": params,
			"runs":    runs,
		})
	})

	fc.Post("/refresh", func(c *fiber.Ctx) error {
		params, err := parseSessionQuery(c)
		if err != nil {
			return err
		}
		run, err := service.Refresh(c.UserContext(), params)
		if err != nil {
			return toFiberError(err, "failed to refresh forecast")
		}
		return c.Status(fiber.StatusCreated).JSON(run.Summary())
	})

	fc.Get("/validation", func(c *fiber.Ctx) error {
		params, err := parseSessionQuery(c)
		if err != nil {
			return err
		}
		v, err := service.Validation(params)
		if err != nil {
			return toFiberError(err, "failed to load model validation")
		}
		return c.JSON(v)
	})

	v1.Get("/recommendations", func(c *fiber.Ctx) error {
		params, filter, err := parseRecommendationQuery(c)
		if err != nil {
			return err
		}
		plan, err := service.RankedRecommendations(params, filter)
		if err != nil {
			return toFiberError(err, "failed to rank recommendations")
		}
		return c.JSON(plan)
	})

	v1.Get("/recommendations/export", func(c *fiber.Ctx) error {
		params, filter, err := parseRecommendationQuery(c)
		if err != nil {
			return err
		}
		plan, err := service.RankedRecommendations(params, filter)
		if err != nil {
			return toFiberError(err, "failed to rank recommendations")
		}
		v, err := service.Validation(params)
		if err != nil {
			return toFiberError(err, "failed to load scenario")
		}

		var buf bytes.Buffer
		if err := export.WritePlan(&buf, v.Label, plan); err != nil {
			klog.ErrorS(err, "Action plan export failed", "session", params.Key())
			return fiber.NewError(fiber.StatusInternalServerError, "failed to export action plan")
		}

		c.Attachment(fmt.Sprintf("action-plan-%s-%s-%s.xlsx", params.City, params.Event, params.TimeRange))
		return c.Send(buf.Bytes())
	})
}

// toFiberError maps domain errors to HTTP statuses. A malformed series from
// the forecaster is a 502; anything unrecognised is logged and reported as a
// 500 with a generic message.
func toFiberError(err error, msg string) error {
	switch {
	case errors.Is(err, scenario.ErrUnknownScenario):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, surge.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, surge.ErrInvalidSeries):
		klog.ErrorS(err, msg)
		return fiber.NewError(fiber.StatusBadGateway, "forecaster returned an invalid series")
	}
	klog.ErrorS(err, msg)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

// parseSessionQuery reads and normalizes the session, then checks the
// required fields so whitespace-only values are rejected.
func parseSessionQuery(c *fiber.Ctx) (scenario.SessionParams, error) {
	params := scenario.SessionParams{
		City:      c.Query("city"),
		Event:     c.Query("event"),
		TimeRange: c.Query("range"),
	}.Normalize()

	if err := validate.Struct(params); err != nil {
		return scenario.SessionParams{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return params, nil
}

// parseRecommendationQuery reads the session plus the optional priority,
// category and urgent filters.
func parseRecommendationQuery(c *fiber.Ctx) (scenario.SessionParams, recommend.Filter, error) {
	var f recommend.Filter

	params, err := parseSessionQuery(c)
	if err != nil {
		return params, f, err
	}

	for _, s := range common.SplitCSV(c.Query("priority")) {
		p, err := recommend.ParsePriority(s)
		if err != nil {
			return params, f, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown priority %q", s))
		}
		f.Priorities = append(f.Priorities, p)
	}
	f.Categories = common.SplitCSV(c.Query("category"))

	urgent, ok := common.ParseBool(c.Query("urgent"))
	if !ok {
		return params, f, fiber.NewError(fiber.StatusBadRequest, "urgent must be a boolean")
	}
	f.UrgentOnly = urgent

	return params, f, nil
}

// ErrorHandler is the centralized error response used by the Fiber app.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
