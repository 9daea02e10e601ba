package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"partshop/internal/policy"
	"partshop/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// ownedRow is implemented by models whose rows belong to a user.
type ownedRow interface {
	OwnerID() string
	SetOwnerID(id string)
}

// TableService runs row API requests after checking them against the access
// policy. Callers limited to their own rows get an extra owner filter and may
// not write owner or protected columns.
type TableService struct {
	policy   *policy.Policy
	rows     repositories.RowRepository
	validate *validator.Validate
}

// NewTableService creates a new TableService.
func NewTableService(p *policy.Policy, rows repositories.RowRepository) *TableService {
	return &TableService{
		policy:   p,
		rows:     rows,
		validate: validator.New(),
	}
}

func (s *TableService) authorize(pr policy.Principal, table string, op policy.Operation) (*repositories.Resource, policy.Scope, error) {
	res, ok := repositories.LookupResource(table)
	if !ok {
		return nil, policy.Denied, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	scope := s.policy.Decide(pr, table, op)
	if scope == policy.Denied {
		return nil, scope, fmt.Errorf("%w: %s on %s as %s", ErrForbidden, op, table, pr.Role)
	}
	return res, scope, nil
}

func ownerFilter(res *repositories.Resource, pr policy.Principal) repositories.Filter {
	return repositories.Filter{Column: policy.OwnerColumn(res.Table), Op: repositories.OpEq, Value: pr.UserID}
}

func withOwner(filters []repositories.Filter, res *repositories.Resource, scope policy.Scope, pr policy.Principal) []repositories.Filter {
	if scope != policy.Own {
		return filters
	}
	out := make([]repositories.Filter, 0, len(filters)+1)
	out = append(out, filters...)
	return append(out, ownerFilter(res, pr))
}

// Select returns the rows of table matching q that the caller may read.
func (s *TableService) Select(ctx context.Context, pr policy.Principal, table string, q repositories.Query) (any, error) {
	res, scope, err := s.authorize(pr, table, policy.Select)
	if err != nil {
		return nil, err
	}
	q.Filters = withOwner(q.Filters, res, scope, pr)
	return s.rows.Select(ctx, res, q)
}

// Insert creates the rows in body, a JSON object or array of objects.
func (s *TableService) Insert(ctx context.Context, pr policy.Principal, table string, body []byte) (any, error) {
	res, scope, err := s.authorize(pr, table, policy.Insert)
	if err != nil {
		return nil, err
	}
	objects, err := objectKeys(body)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: no rows to insert", ErrValidation)
	}
	for _, keys := range objects {
		for _, k := range keys {
			if k != "id" && !res.IsWritable(k) {
				return nil, fmt.Errorf("%w: column %q of %s is not writable", ErrValidation, k, table)
			}
			if scope != policy.All && res.IsProtected(k) {
				return nil, fmt.Errorf("%w: column %q of %s", ErrForbidden, k, table)
			}
		}
	}

	rows, items, err := res.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, item := range items {
		if scope == policy.Own {
			owned, ok := item.(ownedRow)
			if !ok {
				return nil, fmt.Errorf("%w: %s rows have no owner", ErrForbidden, table)
			}
			switch owned.OwnerID() {
			case "":
				owned.SetOwnerID(pr.UserID)
			case pr.UserID:
			default:
				return nil, fmt.Errorf("%w: row belongs to another user", ErrForbidden)
			}
		}
		if err := s.validate.Struct(item); err != nil {
			return nil, validationError(err)
		}
	}

	if err := s.rows.Insert(ctx, res, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update applies the JSON object patch to the rows matching filters and
// returns them.
func (s *TableService) Update(ctx context.Context, pr policy.Principal, table string, filters []repositories.Filter, patch []byte) (any, error) {
	res, scope, err := s.authorize(pr, table, policy.Update)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, repositories.ErrUnfiltered
	}
	objects, err := objectKeys(patch)
	if err != nil {
		return nil, err
	}
	if len(objects) != 1 || bytes.HasPrefix(bytes.TrimSpace(patch), []byte("[")) {
		return nil, fmt.Errorf("%w: patch must be a single JSON object", ErrValidation)
	}
	columns := objects[0]
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: patch is empty", ErrValidation)
	}

	fields := make([]string, 0, len(columns))
	for _, k := range columns {
		if !res.IsWritable(k) {
			return nil, fmt.Errorf("%w: column %q of %s is not writable", ErrValidation, k, table)
		}
		if scope != policy.All && (res.IsProtected(k) || k == policy.OwnerColumn(table)) {
			return nil, fmt.Errorf("%w: column %q of %s", ErrForbidden, k, table)
		}
		if f, ok := res.FieldName(k); ok {
			fields = append(fields, f)
		}
	}

	_, items, err := res.Decode(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.validate.StructPartial(items[0], fields...); err != nil {
		return nil, validationError(err)
	}

	return s.rows.Update(ctx, res, withOwner(filters, res, scope, pr), columns, items[0])
}

// Delete removes the rows matching filters and returns them.
func (s *TableService) Delete(ctx context.Context, pr policy.Principal, table string, filters []repositories.Filter) (any, error) {
	res, scope, err := s.authorize(pr, table, policy.Delete)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, repositories.ErrUnfiltered
	}
	return s.rows.Delete(ctx, res, withOwner(filters, res, scope, pr))
}

// objectKeys returns the sorted keys of each object in a JSON object or array.
func objectKeys(body []byte) ([][]string, error) {
	trimmed := bytes.TrimSpace(body)
	var objects []map[string]json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &objects); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	} else {
		var one map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		objects = append(objects, one)
	}

	out := make([][]string, len(objects))
	for i, obj := range objects {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out[i] = keys
	}
	return out, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
