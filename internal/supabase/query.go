package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// QueryBuilder builds PostgREST requests against a single table. Builders
// are single-use and not safe for concurrent mutation.
type QueryBuilder struct {
	client      *Client
	table       string
	columns     string
	filters     []string
	orders      []string
	limit       int
	offset      int
	single      bool
	count       string // exact, planned, estimated
	onConflict  string
	accessToken string
}

// Select specifies columns to return.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.filter(column, "eq", value)
}

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.filter(column, "neq", value)
}

// Gt adds a greater-than filter.
func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	return q.filter(column, "gt", value)
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return q.filter(column, "gte", value)
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return q.filter(column, "lt", value)
}

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return q.filter(column, "lte", value)
}

// Like adds a LIKE filter.
func (q *QueryBuilder) Like(column, pattern string) *QueryBuilder {
	return q.filter(column, "like", pattern)
}

// ILike adds a case-insensitive LIKE filter.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.filter(column, "ilike", pattern)
}

// Is adds an IS filter for null/true/false.
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return q.filter(column, "is", value)
}

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []any) *QueryBuilder {
	strValues := make([]string, len(values))
	for i, v := range values {
		strValues[i] = fmt.Sprintf("%v", v)
	}
	q.filters = append(q.filters, fmt.Sprintf("%s=in.(%s)", column, strings.Join(strValues, ",")))
	return q
}

func (q *QueryBuilder) filter(column, op string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=%s.%v", column, op, value))
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset skips n rows.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Single requests exactly one row; the backend rejects the query otherwise.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Count asks for a row count in the Content-Range header.
func (q *QueryBuilder) Count(countType string) *QueryBuilder {
	q.count = countType
	return q
}

// OnConflict sets the conflict target for upserts.
func (q *QueryBuilder) OnConflict(columns string) *QueryBuilder {
	q.onConflict = columns
	return q
}

// WithToken scopes the request to a user session so the backend enforces
// that user's row-level access instead of the API key's.
func (q *QueryBuilder) WithToken(accessToken string) *QueryBuilder {
	q.accessToken = accessToken
	return q
}

// Execute runs the builder as a SELECT.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.buildURL(true), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.setHeaders(req)
	return q.client.do(req)
}

// ExecuteInsert runs an INSERT returning the created rows.
func (q *QueryBuilder) ExecuteInsert(ctx context.Context, data any) (*Response, error) {
	return q.write(ctx, http.MethodPost, data, "return=representation")
}

// ExecuteUpsert runs an INSERT with duplicate merging.
func (q *QueryBuilder) ExecuteUpsert(ctx context.Context, data any) (*Response, error) {
	return q.write(ctx, http.MethodPost, data, "resolution=merge-duplicates,return=representation")
}

// ExecuteUpdate runs an UPDATE over the filtered rows.
func (q *QueryBuilder) ExecuteUpdate(ctx context.Context, data any) (*Response, error) {
	return q.write(ctx, http.MethodPatch, data, "return=representation")
}

// ExecuteDelete deletes the filtered rows and returns them.
func (q *QueryBuilder) ExecuteDelete(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, q.buildURL(false), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

func (q *QueryBuilder) write(ctx context.Context, method string, data any, prefer string) (*Response, error) {
	body, err := marshalBody(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, q.buildURL(false), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return q.client.do(req)
}

func (q *QueryBuilder) setHeaders(req *http.Request) {
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	q.client.setHeaders(req, q.accessToken)
	if q.count != "" {
		req.Header.Set("Prefer", appendPrefer(req.Header.Get("Prefer"), "count="+q.count))
	}
}

func (q *QueryBuilder) buildURL(withSelect bool) string {
	reqURL := q.client.baseURL + "/rest/v1/" + url.PathEscape(q.table)

	params := url.Values{}
	if withSelect && q.columns != "" {
		params.Set("select", q.columns)
	}
	for _, f := range q.filters {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			params.Add(parts[0], parts[1])
		}
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", q.offset))
	}
	// PostgREST takes the upsert conflict target as a query parameter.
	if q.onConflict != "" {
		params.Set("on_conflict", q.onConflict)
	}

	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

func appendPrefer(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "," + addition
}
