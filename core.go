package protomap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Clock is a function type that returns the current time for dependency injection.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// Values holds the decoded attributes of an item keyed by attribute name.
type Values map[string]any

// Field returns the named value converted to T. The boolean is false if the
// value is missing or has another type.
func Field[T any](v Values, name string) (T, bool) {
	out, ok := v[name].(T)
	return out, ok
}

// ModelOptions contains configuration options for new models.
type ModelOptions struct {
	TableName string // Physical table name. Defaults to the model name.
	Abstract  bool   // Abstract models cannot be dumped or loaded.
}

// Model is an ordered set of columns bound to a table.
type Model struct {
	name      string
	tableName string
	abstract  bool
	parent    *Model
	shared    *Model // shared base whose table name every descendant uses
	columns   []*Column
}

// NewModel creates an empty model.
func NewModel(name string, opts ...func(*ModelOptions)) *Model {
	options := ModelOptions{TableName: name}
	for _, opt := range opts {
		opt(&options)
	}
	return &Model{
		name:      name,
		tableName: options.TableName,
		abstract:  options.Abstract,
	}
}

func (m *Model) Name() string   { return m.name }
func (m *Model) Abstract() bool { return m.abstract }
func (m *Model) Parent() *Model { return m.parent }

// TableName returns the physical table name. Models derived from a shared base
// always report the base's table name.
func (m *Model) TableName() string {
	if m.shared != nil && m.shared != m {
		return m.shared.TableName()
	}
	return m.tableName
}

// SetTableName changes the physical table name of the model.
func (m *Model) SetTableName(name string) {
	m.tableName = name
}

// Columns returns the model columns in binding order.
func (m *Model) Columns() []*Column {
	out := make([]*Column, len(m.columns))
	copy(out, m.columns)
	return out
}

// Column returns the column bound under the attribute name, or nil.
func (m *Model) Column(name string) *Column {
	for _, col := range m.columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// ColumnByStoreName returns the column stored under the physical name, or nil.
func (m *Model) ColumnByStoreName(name string) *Column {
	for _, col := range m.columns {
		if col.storeName() == name {
			return col
		}
	}
	return nil
}

// HashKey returns the hash key column, or nil.
func (m *Model) HashKey() *Column {
	for _, col := range m.columns {
		if col.HashKey {
			return col
		}
	}
	return nil
}

// RangeKey returns the range key column, or nil.
func (m *Model) RangeKey() *Column {
	for _, col := range m.columns {
		if col.RangeKey {
			return col
		}
	}
	return nil
}

// Bind binds a copy of col under the attribute name. The storage name defaults to
// the attribute name. A column whose name, storage name or key role conflicts
// with an existing column fails with ErrDuplicateColumn unless force is set, in
// which case the existing column is replaced.
func (m *Model) Bind(name string, col *Column, force bool) error {
	return m.bind(name, col, func(*Column) bool { return force })
}

func (m *Model) bind(name string, col *Column, replace func(*Column) bool) error {
	if col == nil {
		return fmt.Errorf("%w: cannot bind nil column %s.%s", ErrUnknownColumn, m.name, name)
	}

	bound := *col
	bound.Name = name
	if bound.StoreName == "" {
		bound.StoreName = name
	}

	kept := make([]*Column, 0, len(m.columns)+1)
	for _, existing := range m.columns {
		if !conflicts(existing, &bound) {
			kept = append(kept, existing)
			continue
		}
		if !replace(existing) {
			return fmt.Errorf("%w: %s cannot bind %s over %s", ErrDuplicateColumn, m.name, bound.String(), existing.String())
		}
	}

	m.columns = append(kept, &bound)
	return nil
}

func conflicts(a, b *Column) bool {
	return a.Name == b.Name ||
		a.storeName() == b.storeName() ||
		(a.HashKey && b.HashKey) ||
		(a.RangeKey && b.RangeKey)
}

// Attr pairs an attribute name with the column bound under it by Extend.
type Attr struct {
	Name   string
	Column *Column
}

// As returns an Attr binding col under name.
func As(name string, col *Column) Attr {
	return Attr{Name: name, Column: col}
}

// Extend derives a concrete model from m. The derived model inherits every
// column of m; an attribute that shares a name, storage name or key role with an
// inherited column replaces it. Conflicts between the new attributes fail with
// ErrDuplicateColumn.
func (m *Model) Extend(name string, attrs ...Attr) (*Model, error) {
	child := &Model{
		name:      name,
		tableName: name,
		parent:    m,
		shared:    m.shared,
		columns:   make([]*Column, 0, len(m.columns)+len(attrs)),
	}

	inherited := make(map[*Column]bool, len(m.columns))
	for _, col := range m.columns {
		clone := col.Clone()
		inherited[clone] = true
		child.columns = append(child.columns, clone)
	}

	for _, attr := range attrs {
		if err := child.bind(attr.Name, attr.Column, func(c *Column) bool { return inherited[c] }); err != nil {
			return nil, err
		}
	}

	return child, nil
}

// Dump encodes values into a DynamoDB item. Missing attributes fall back to the
// column default; attributes that encode to nil are omitted.
func (m *Model) Dump(ctx context.Context, values Values) (Item, error) {
	if m.abstract {
		return nil, fmt.Errorf("cannot dump abstract model %s", m.name)
	}

	for name := range values {
		if m.Column(name) == nil {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, m.name, name)
		}
	}

	item := make(Item, len(m.columns))
	for _, col := range m.columns {
		if err := m.dumpColumn(ctx, col, values, item); err != nil {
			return nil, err
		}
	}

	return item, nil
}

func (m *Model) dumpColumn(ctx context.Context, col *Column, values Values, item Item) error {
	v, ok := values[col.Name]
	if !ok && col.Default != nil {
		v = col.Default()
	}

	av, err := col.Codec.Encode(ctx, v)
	if err != nil {
		return &ColumnError{Model: m.name, Column: col.Name, Operation: "encode", Err: err}
	}

	if av != nil {
		item[col.storeName()] = av
	}
	return nil
}

// Load decodes an item into values keyed by attribute name. Every column is
// decoded, so a column whose codec rejects a missing attribute fails the load.
// Key, static and prefixed columns are decoded first, so an item of another
// model fails with ErrStaticMismatch or ErrMalformedValue regardless of the
// order columns were bound in.
func (m *Model) Load(ctx context.Context, item Item) (Values, error) {
	if m.abstract {
		return nil, fmt.Errorf("cannot load abstract model %s", m.name)
	}

	values := make(Values, len(m.columns))
	for _, col := range m.loadOrder() {
		v, err := col.Codec.Decode(ctx, item[col.storeName()])
		if err != nil {
			return nil, &ColumnError{Model: m.name, Column: col.Name, Operation: "decode", Err: err}
		}
		if v != nil {
			values[col.Name] = v
		}
	}

	return values, nil
}

// loadOrder returns the columns with the ones that tell models apart first.
func (m *Model) loadOrder() []*Column {
	ordered := make([]*Column, 0, len(m.columns))
	var rest []*Column
	for _, col := range m.columns {
		if col.discriminates() {
			ordered = append(ordered, col)
		} else {
			rest = append(rest, col)
		}
	}
	return append(ordered, rest...)
}

// Key encodes the hash and range key of values. Column defaults apply, so a
// static hash key needs no value.
func (m *Model) Key(ctx context.Context, values Values) (Item, error) {
	hash := m.HashKey()
	if hash == nil {
		return nil, fmt.Errorf("%w: %s has no hash key", ErrMissingKey, m.name)
	}

	key := make(Item, 2)
	for _, col := range []*Column{hash, m.RangeKey()} {
		if col == nil {
			continue
		}
		if err := m.dumpColumn(ctx, col, values, key); err != nil {
			return nil, err
		}
		if _, ok := key[col.storeName()]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingKey, m.name, col.Name)
		}
	}

	return key, nil
}

// DynamoDBClient interface for easier testing and connection management.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}
