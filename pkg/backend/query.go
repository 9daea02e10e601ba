package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// QueryBuilder accumulates a row API request. Filters are sent as
// column=op.value query parameters.
type QueryBuilder struct {
	client *Client
	table  string
	params url.Values
	order  []string
}

func (q *QueryBuilder) filter(column, op string, value any) *QueryBuilder {
	q.params.Add(column, op+"."+formatValue(value))
	return q
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Select limits the returned columns.
func (q *QueryBuilder) Select(columns ...string) *QueryBuilder {
	q.params.Set("select", strings.Join(columns, ","))
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder  { return q.filter(column, "eq", value) }
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder { return q.filter(column, "neq", value) }
func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder  { return q.filter(column, "gt", value) }
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder { return q.filter(column, "gte", value) }
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder  { return q.filter(column, "lt", value) }
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder { return q.filter(column, "lte", value) }

// Like matches a pattern; * is the wildcard.
func (q *QueryBuilder) Like(column, pattern string) *QueryBuilder {
	return q.filter(column, "like", pattern)
}

// In matches any of values.
func (q *QueryBuilder) In(column string, values ...any) *QueryBuilder {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	q.params.Add(column, "in.("+strings.Join(parts, ",")+")")
	return q
}

// Is compares with null, true or false.
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return q.filter(column, "is", value)
}

// Order sorts by column. Calls accumulate.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.order = append(q.order, column+"."+dir)
	q.params.Set("order", strings.Join(q.order, ","))
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

func (q *QueryBuilder) path() string { return "/rest/v1/" + url.PathEscape(q.table) }

// Execute runs the query and decodes the rows into dest.
func (q *QueryBuilder) Execute(ctx context.Context, dest any) error {
	return q.client.do(ctx, http.MethodGet, q.path(), q.params, nil, dest)
}

// Insert creates rows, an object or a slice, and decodes the created rows
// into dest when it is non-nil.
func (q *QueryBuilder) Insert(ctx context.Context, rows, dest any) error {
	return q.client.do(ctx, http.MethodPost, q.path(), nil, rows, dest)
}

// Update applies patch to the rows matching the filters.
func (q *QueryBuilder) Update(ctx context.Context, patch, dest any) error {
	return q.client.do(ctx, http.MethodPatch, q.path(), q.filters(), patch, dest)
}

// Delete removes the rows matching the filters.
func (q *QueryBuilder) Delete(ctx context.Context, dest any) error {
	return q.client.do(ctx, http.MethodDelete, q.path(), q.filters(), nil, dest)
}

// filters drops the read-only parameters.
func (q *QueryBuilder) filters() url.Values {
	out := url.Values{}
	for k, v := range q.params {
		switch k {
		case "select", "order", "limit":
			continue
		}
		out[k] = v
	}
	return out
}
