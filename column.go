package protomap

import "fmt"

// Column describes one model attribute: its attribute name, physical DynamoDB
// name, codec and key role.
type Column struct {
	Name      string     // Attribute name used in Values
	StoreName string     // Attribute name in the DynamoDB item
	Codec     Codec      // Encodes and decodes the attribute
	HashKey   bool       // Column is the table hash (partition) key
	RangeKey  bool       // Column is the table range (sort) key
	Default   func() any // Optional value used when the attribute is missing on dump
}

// ColumnOption configures a Column created with NewColumn.
type ColumnOption func(*Column)

// HashKey marks the column as the hash key.
func HashKey() ColumnOption {
	return func(c *Column) { c.HashKey = true }
}

// RangeKey marks the column as the range key.
func RangeKey() ColumnOption {
	return func(c *Column) { c.RangeKey = true }
}

// StoreAs sets the physical attribute name.
func StoreAs(name string) ColumnOption {
	return func(c *Column) { c.StoreName = name }
}

// WithDefault sets the value used when the attribute is missing on dump.
func WithDefault(fn func() any) ColumnOption {
	return func(c *Column) { c.Default = fn }
}

// NewColumn creates an unbound column with the codec described by def.
func NewColumn(def CodecDef, opts ...ColumnOption) (*Column, error) {
	codec, err := resolveCodec(def)
	if err != nil {
		return nil, err
	}
	col := &Column{Codec: codec}
	for _, opt := range opts {
		opt(col)
	}
	return col, nil
}

// MustColumn is like NewColumn but panics on error. It is intended for
// package-level model declarations.
func MustColumn(def CodecDef, opts ...ColumnOption) *Column {
	col, err := NewColumn(def, opts...)
	if err != nil {
		panic(err)
	}
	return col
}

// Clone returns a shallow copy of the column pinned to the original storage name,
// so rebinding the clone under another attribute name still targets the same
// DynamoDB attribute.
func (c *Column) Clone() *Column {
	clone := *c
	clone.StoreName = c.storeName()
	return &clone
}

// discriminates reports whether the column can reject an item of another
// model sharing the table.
func (c *Column) discriminates() bool {
	if c.HashKey || c.RangeKey {
		return true
	}
	switch c.Codec.(type) {
	case *StaticCodec, *PrefixCodec:
		return true
	}
	return false
}

func (c *Column) storeName() string {
	if c.StoreName != "" {
		return c.StoreName
	}
	return c.Name
}

func (c *Column) String() string {
	if c.Name == c.storeName() {
		return fmt.Sprintf("Column(%s)", c.Name)
	}
	return fmt.Sprintf("Column(%s=%s)", c.Name, c.storeName())
}

// ColumnRef references a column on a model, either by descriptor or by
// attribute name.
type ColumnRef interface {
	columnOf(*Model) (*Column, error)
}

// ColumnName references a column by attribute name.
type ColumnName string

func (n ColumnName) columnOf(m *Model) (*Column, error) {
	if col := m.Column(string(n)); col != nil {
		return col, nil
	}
	return nil, fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, m.Name(), string(n))
}

func (c *Column) columnOf(m *Model) (*Column, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil column on %s", ErrUnknownColumn, m.Name())
	}
	return c, nil
}
