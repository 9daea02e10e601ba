package handlers

import (
	"encoding/json"
	"fmt"

	"partshop/internal/middleware"
	"partshop/internal/repositories"
	"partshop/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RestHandler serves the generic row API under /rest/v1/:table.
type RestHandler struct {
	tables *services.TableService
	tokens middleware.TokenValidator
	log    *zap.Logger
}

// NewRestHandler creates a new RestHandler.
func NewRestHandler(tables *services.TableService, tokens middleware.TokenValidator, log *zap.Logger) *RestHandler {
	return &RestHandler{tables: tables, tokens: tokens, log: log}
}

// RegisterRoutes registers the row API. Every route requires a credential.
func (h *RestHandler) RegisterRoutes(router fiber.Router) {
	rest := router.Group("/rest/v1", middleware.AuthRequired(h.tokens, h.log))
	rest.Get("/:table", h.HandleSelect)
	rest.Post("/:table", h.HandleInsert)
	rest.Patch("/:table", h.HandleUpdate)
	rest.Delete("/:table", h.HandleDelete)
}

func (h *RestHandler) resource(c *fiber.Ctx) (*repositories.Resource, error) {
	table := c.Params("table")
	res, ok := repositories.LookupResource(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", services.ErrUnknownTable, table)
	}
	return res, nil
}

func (h *RestHandler) HandleSelect(c *fiber.Ctx) error {
	pr, _ := middleware.PrincipalFrom(c)
	res, err := h.resource(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	q, err := parseRowQuery(c, res)
	if err != nil {
		return writeError(c, h.log, err)
	}

	rows, err := h.tables.Select(c.UserContext(), pr, res.Table, q.Query)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return h.writeRows(c, fiber.StatusOK, rows, q.Columns)
}

func (h *RestHandler) HandleInsert(c *fiber.Ctx) error {
	pr, _ := middleware.PrincipalFrom(c)
	res, err := h.resource(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	rows, err := h.tables.Insert(c.UserContext(), pr, res.Table, c.Body())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return h.writeRows(c, fiber.StatusCreated, rows, nil)
}

func (h *RestHandler) HandleUpdate(c *fiber.Ctx) error {
	pr, _ := middleware.PrincipalFrom(c)
	res, err := h.resource(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	filters, err := parseFilters(c, res)
	if err != nil {
		return writeError(c, h.log, err)
	}

	rows, err := h.tables.Update(c.UserContext(), pr, res.Table, filters, c.Body())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return h.writeRows(c, fiber.StatusOK, rows, nil)
}

func (h *RestHandler) HandleDelete(c *fiber.Ctx) error {
	pr, _ := middleware.PrincipalFrom(c)
	res, err := h.resource(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	filters, err := parseFilters(c, res)
	if err != nil {
		return writeError(c, h.log, err)
	}

	rows, err := h.tables.Delete(c.UserContext(), pr, res.Table, filters)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return h.writeRows(c, fiber.StatusOK, rows, nil)
}

// writeRows encodes rows as a JSON array, keeping only columns when given.
func (h *RestHandler) writeRows(c *fiber.Ctx, status int, rows any, columns []string) error {
	if len(columns) == 0 {
		return c.Status(status).JSON(rows)
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var full []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &full); err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]map[string]json.RawMessage, len(full))
	for i, row := range full {
		picked := make(map[string]json.RawMessage, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				picked[col] = v
			}
		}
		out[i] = picked
	}
	return c.Status(status).JSON(out)
}
