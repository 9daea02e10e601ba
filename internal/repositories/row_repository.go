package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"partshop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resource describes a table reachable through the generic row API.
type Resource struct {
	Table string
	// Columns may be selected, filtered and ordered on.
	Columns []string
	// Writable columns may be set by inserts and updates.
	Writable []string
	// Protected is the subset of Writable reserved for callers with
	// table-wide access; row owners may not change them.
	Protected []string

	newRow func() any
	decode func(data []byte) (rows any, items []any, err error)
	fields map[string]string // json name -> struct field
	bools  map[string]bool
}

func newResource[T any](table string, columns, writable, protected []string) *Resource {
	fields, bools := jsonFields(reflect.TypeOf((*T)(nil)).Elem())
	return &Resource{
		Table:     table,
		Columns:   columns,
		Writable:  writable,
		Protected: protected,
		fields:    fields,
		bools:     bools,
		newRow:    func() any { return new(T) },
		decode: func(data []byte) (any, []any, error) {
			trimmed := bytes.TrimSpace(data)
			dec := json.NewDecoder(bytes.NewReader(trimmed))
			dec.DisallowUnknownFields()

			var rows []T
			if len(trimmed) > 0 && trimmed[0] == '[' {
				if err := dec.Decode(&rows); err != nil {
					return nil, nil, err
				}
			} else {
				var one T
				if err := dec.Decode(&one); err != nil {
					return nil, nil, err
				}
				rows = []T{one}
			}
			items := make([]any, len(rows))
			for i := range rows {
				items[i] = &rows[i]
			}
			return &rows, items, nil
		},
	}
}

var resources = map[string]*Resource{
	"users": newResource[models.User]("users",
		[]string{"id", "email", "name", "company", "address", "phone", "status", "is_admin", "created_at", "updated_at"},
		[]string{"email", "name", "company", "address", "phone", "status", "is_admin"},
		[]string{"email", "status", "is_admin"},
	),
	"parts": newResource[models.Part]("parts",
		[]string{"id", "part_number", "name_en", "name_ru", "category", "price", "quantity", "image_url", "created_at", "updated_at"},
		[]string{"part_number", "name_en", "name_ru", "category", "price", "quantity", "image_url"},
		nil,
	),
	"cart_items": newResource[models.CartItem]("cart_items",
		[]string{"id", "user_id", "part_id", "quantity", "created_at"},
		[]string{"user_id", "part_id", "quantity"},
		nil,
	),
	"verification_codes": newResource[models.VerificationCode]("verification_codes",
		[]string{"id", "email", "code", "expires_at", "used", "created_at"},
		[]string{"email", "code", "expires_at", "used"},
		nil,
	),
}

func jsonFields(t reflect.Type) (map[string]string, map[string]bool) {
	fields := make(map[string]string, t.NumField())
	bools := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = f.Name
		if f.Type.Kind() == reflect.Bool {
			bools[name] = true
		}
	}
	return fields, bools
}

// LookupResource returns the resource for table.
func LookupResource(table string) (*Resource, bool) {
	r, ok := resources[table]
	return r, ok
}

// NewRow returns a pointer to a zero row of the resource's model.
func (r *Resource) NewRow() any { return r.newRow() }

// Decode parses a JSON object or array into a pointer to a slice of rows.
// items holds a pointer to each element. Unknown fields are rejected.
func (r *Resource) Decode(data []byte) (rows any, items []any, err error) {
	return r.decode(data)
}

// FieldName returns the struct field backing the JSON column name.
func (r *Resource) FieldName(column string) (string, bool) {
	f, ok := r.fields[column]
	return f, ok
}

// IsBool reports whether column holds a boolean.
func (r *Resource) IsBool(column string) bool { return r.bools[column] }

func (r *Resource) HasColumn(name string) bool { return contains(r.Columns, name) }

func (r *Resource) IsWritable(name string) bool { return contains(r.Writable, name) }

func (r *Resource) IsProtected(name string) bool { return contains(r.Protected, name) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// FilterOp is a comparison understood by the row API.
type FilterOp string

const (
	OpEq   FilterOp = "eq"
	OpNeq  FilterOp = "neq"
	OpGt   FilterOp = "gt"
	OpGte  FilterOp = "gte"
	OpLt   FilterOp = "lt"
	OpLte  FilterOp = "lte"
	OpLike FilterOp = "like"
	OpIn   FilterOp = "in"
	OpIs   FilterOp = "is"
)

// Filter restricts rows by comparing a column with a value. Value is a
// []any for OpIn and nil, true or false for OpIs.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

// Order sorts results by a column.
type Order struct {
	Column    string
	Ascending bool
}

// Query selects rows of a resource.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   *int // nil for no limit; zero selects nothing
	Offset  int
}

// RowRepository gives table-agnostic access to the catalog's rows.
type RowRepository interface {
	Select(ctx context.Context, res *Resource, q Query) (any, error)
	Insert(ctx context.Context, res *Resource, rows any) error
	Update(ctx context.Context, res *Resource, filters []Filter, columns []string, patch any) (any, error)
	Delete(ctx context.Context, res *Resource, filters []Filter) (any, error)
}

// GORMRowRepository implements RowRepository on top of GORM.
type GORMRowRepository struct {
	db *gorm.DB
}

func NewGORMRowRepository(db *gorm.DB) *GORMRowRepository {
	return &GORMRowRepository{db: db}
}

func applyFilters(tx *gorm.DB, res *Resource, filters []Filter) (*gorm.DB, error) {
	for _, f := range filters {
		if !res.HasColumn(f.Column) {
			return nil, fmt.Errorf("%w %q on %s", ErrUnknownColumn, f.Column, res.Table)
		}
		col := f.Column // whitelisted above
		switch f.Op {
		case OpEq:
			tx = tx.Where(col+" = ?", f.Value)
		case OpNeq:
			tx = tx.Where(col+" <> ?", f.Value)
		case OpGt:
			tx = tx.Where(col+" > ?", f.Value)
		case OpGte:
			tx = tx.Where(col+" >= ?", f.Value)
		case OpLt:
			tx = tx.Where(col+" < ?", f.Value)
		case OpLte:
			tx = tx.Where(col+" <= ?", f.Value)
		case OpLike:
			tx = tx.Where(col+" LIKE ?", f.Value)
		case OpIn:
			tx = tx.Where(col+" IN ?", f.Value)
		case OpIs:
			if f.Value == nil {
				tx = tx.Where(col + " IS NULL")
			} else {
				tx = tx.Where(col+" = ?", f.Value)
			}
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return tx, nil
}

func (r *GORMRowRepository) Select(ctx context.Context, res *Resource, q Query) (any, error) {
	tx, err := applyFilters(r.db.WithContext(ctx).Model(res.NewRow()), res, q.Filters)
	if err != nil {
		return nil, err
	}
	for _, o := range q.Order {
		if !res.HasColumn(o.Column) {
			return nil, fmt.Errorf("%w %q on %s", ErrUnknownColumn, o.Column, res.Table)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: !o.Ascending})
	}
	if q.Limit != nil {
		tx = tx.Limit(*q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	rows, _, _ := res.Decode([]byte("[]"))
	if err := tx.Find(rows).Error; err != nil {
		return nil, classify("select "+res.Table, err)
	}
	return rows, nil
}

func (r *GORMRowRepository) Insert(ctx context.Context, res *Resource, rows any) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(rows).Error
	return classify("insert into "+res.Table, err)
}

// matchingIDs returns the primary keys of rows matching filters.
func matchingIDs(tx *gorm.DB, res *Resource, filters []Filter) ([]string, error) {
	if len(filters) == 0 {
		return nil, ErrUnfiltered
	}
	q, err := applyFilters(tx.Model(res.NewRow()), res, filters)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, classify("select "+res.Table, err)
	}
	return ids, nil
}

func (r *GORMRowRepository) findByIDs(tx *gorm.DB, res *Resource, ids []string) (any, error) {
	rows, _, _ := res.Decode([]byte("[]"))
	if len(ids) == 0 {
		return rows, nil
	}
	if err := tx.Model(res.NewRow()).Where("id IN ?", ids).Find(rows).Error; err != nil {
		return nil, classify("select "+res.Table, err)
	}
	return rows, nil
}

// Update writes columns from patch to every row matching filters and returns
// the updated rows.
func (r *GORMRowRepository) Update(ctx context.Context, res *Resource, filters []Filter, columns []string, patch any) (any, error) {
	if len(columns) == 0 {
		return nil, errors.New("update " + res.Table + ": no columns to update")
	}
	var out any
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := matchingIDs(tx, res, filters)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			err := tx.Model(patch).Where("id IN ?", ids).Select(columns).Updates(patch).Error
			if err != nil {
				return classify("update "+res.Table, err)
			}
		}
		out, err = r.findByIDs(tx, res, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes every row matching filters and returns the removed rows.
func (r *GORMRowRepository) Delete(ctx context.Context, res *Resource, filters []Filter) (any, error) {
	var out any
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := matchingIDs(tx, res, filters)
		if err != nil {
			return err
		}
		if out, err = r.findByIDs(tx, res, ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return classify("delete from "+res.Table, tx.Where("id IN ?", ids).Delete(res.NewRow()).Error)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
