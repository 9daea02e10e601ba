package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"partshop/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

var filterOps = map[string]repositories.FilterOp{
	"eq":   repositories.OpEq,
	"neq":  repositories.OpNeq,
	"gt":   repositories.OpGt,
	"gte":  repositories.OpGte,
	"lt":   repositories.OpLt,
	"lte":  repositories.OpLte,
	"like": repositories.OpLike,
	"in":   repositories.OpIn,
	"is":   repositories.OpIs,
}

// rowQuery is a parsed row API query string.
type rowQuery struct {
	repositories.Query
	Columns []string // projection; empty selects every column
}

// parseRowQuery reads select, order, limit and offset, and treats every other
// parameter as a filter of the form col=op.value.
func parseRowQuery(c *fiber.Ctx, res *repositories.Resource) (rowQuery, error) {
	var q rowQuery
	var parseErr error
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		if parseErr != nil {
			return
		}
		k, v := string(key), string(value)
		switch k {
		case "select":
			q.Columns, parseErr = parseSelect(v, res)
		case "order":
			q.Order, parseErr = parseOrder(v)
		case "limit":
			var n int
			if n, parseErr = parseCount(k, v); parseErr == nil {
				q.Limit = &n
			}
		case "offset":
			q.Offset, parseErr = parseCount(k, v)
		default:
			var f repositories.Filter
			f, parseErr = parseFilter(k, v, res)
			q.Filters = append(q.Filters, f)
		}
	})
	return q, parseErr
}

// parseFilters reads only filters; used by PATCH and DELETE.
func parseFilters(c *fiber.Ctx, res *repositories.Resource) ([]repositories.Filter, error) {
	q, err := parseRowQuery(c, res)
	if err != nil {
		return nil, err
	}
	return q.Filters, nil
}

func parseSelect(v string, res *repositories.Resource) ([]string, error) {
	var cols []string
	for _, col := range splitList(v) {
		if col == "*" {
			return nil, nil
		}
		if !res.HasColumn(col) {
			return nil, fmt.Errorf("%w %q on %s", repositories.ErrUnknownColumn, col, res.Table)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func parseOrder(v string) ([]repositories.Order, error) {
	var out []repositories.Order
	for _, term := range splitList(v) {
		col, dir, _ := strings.Cut(term, ".")
		o := repositories.Order{Column: col, Ascending: true}
		switch dir {
		case "", "asc":
		case "desc":
			o.Ascending = false
		default:
			return nil, fmt.Errorf("%w: order direction %q", errBadQuery, dir)
		}
		out = append(out, o)
	}
	return out, nil
}

func parseCount(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadQuery, name)
	}
	return n, nil
}

func parseFilter(col, v string, res *repositories.Resource) (repositories.Filter, error) {
	opName, raw, ok := strings.Cut(v, ".")
	op, known := filterOps[opName]
	if !ok || !known {
		return repositories.Filter{}, fmt.Errorf("%w: filter %s=%s must look like op.value", errBadQuery, col, v)
	}
	f := repositories.Filter{Column: col, Op: op}

	switch op {
	case repositories.OpIs:
		switch strings.ToLower(raw) {
		case "null":
			f.Value = nil
		case "true":
			f.Value = true
		case "false":
			f.Value = false
		default:
			return f, fmt.Errorf("%w: is accepts null, true or false", errBadQuery)
		}
	case repositories.OpIn:
		if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
			return f, fmt.Errorf("%w: in expects a list like in.(a,b)", errBadQuery)
		}
		items := splitList(raw[1 : len(raw)-1])
		values := make([]any, len(items))
		for i, item := range items {
			values[i] = coerce(res, col, item)
		}
		f.Value = values
	case repositories.OpLike:
		f.Value = strings.ReplaceAll(raw, "*", "%")
	default:
		f.Value = coerce(res, col, raw)
	}
	return f, nil
}

// coerce turns "true" and "false" into booleans for boolean columns, which
// sqlite stores as integers.
func coerce(res *repositories.Resource, col, raw string) any {
	if res.IsBool(col) {
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
