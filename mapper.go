package protomap

import "fmt"

// SharedOptions contains configuration options for SharedBase.
type SharedOptions struct {
	TableName    string // Physical table name. Defaults to Base's table name, or "SharedBase".
	HashKeyName  string // Hash key attribute and storage name. Default is "hk".
	RangeKeyName string // Range key attribute and storage name. Default is "rk".
	Base         *Model // Optional model whose columns the shared base inherits.
}

// SharedBase creates a base model with two String key columns. Every model
// derived from it with Extend resolves to the same physical table, so several
// models can share one table while keeping distinct logical partitions through
// static and prefixed key columns.
func SharedBase(opts ...func(*SharedOptions)) (*Model, error) {
	options := SharedOptions{
		HashKeyName:  "hk",
		RangeKeyName: "rk",
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.TableName == "" {
		options.TableName = "SharedBase"
		if options.Base != nil {
			options.TableName = options.Base.TableName()
		}
	}

	base := NewModel("SharedBase", func(mo *ModelOptions) {
		mo.TableName = options.TableName
	})
	if options.Base != nil {
		base.parent = options.Base
		for _, col := range options.Base.columns {
			base.columns = append(base.columns, col.Clone())
		}
	}

	hash := &Column{Codec: String, HashKey: true, StoreName: options.HashKeyName}
	if err := base.Bind(options.HashKeyName, hash, true); err != nil {
		return nil, fmt.Errorf("failed to bind hash key: %w", err)
	}

	rng := &Column{Codec: String, RangeKey: true, StoreName: options.RangeKeyName}
	if err := base.Bind(options.RangeKeyName, rng, true); err != nil {
		return nil, fmt.Errorf("failed to bind range key: %w", err)
	}

	base.shared = base
	return base, nil
}

// Mapper derives transformed columns from the columns of one model.
//
// A Mapper keeps the first error it encounters. A failing method returns nil
// and later calls are no-ops, so columns can be declared inline and the error
// checked once through Err or Extend.
type Mapper struct {
	model *Model
	err   error
}

// NewMapper returns a Mapper bound to model.
func NewMapper(model *Model) *Mapper {
	return &Mapper{model: model}
}

// Model returns the model the mapper is bound to.
func (m *Mapper) Model() *Model { return m.model }

// Err returns the first error recorded by the mapper.
func (m *Mapper) Err() error { return m.err }

// Static returns a clone of the referenced column that only accepts value.
// The clone defaults to value, so callers never need to set it.
func (m *Mapper) Static(def CodecDef, ref ColumnRef, value any) *Column {
	col := m.clone(ref)
	if col == nil {
		return nil
	}

	codec, err := NewStaticCodec(def, value)
	if err != nil {
		m.fail(fmt.Errorf("failed to make static column %s: %w", col.storeName(), err))
		return nil
	}

	col.Codec = codec
	col.Default = func() any { return value }
	return col
}

// Prefix returns a clone of the referenced column that stores its value
// behind prefix.
func (m *Mapper) Prefix(def CodecDef, ref ColumnRef, prefix string) *Column {
	col := m.clone(ref)
	if col == nil {
		return nil
	}

	codec, err := NewPrefixCodec(def, prefix)
	if err != nil {
		m.fail(fmt.Errorf("failed to make prefix column %s: %w", col.storeName(), err))
		return nil
	}

	col.Codec = codec
	return col
}

// Override returns a clone of the referenced column with its codec replaced.
func (m *Mapper) Override(def CodecDef, ref ColumnRef) *Column {
	col := m.clone(ref)
	if col == nil {
		return nil
	}

	codec, err := resolveCodec(def)
	if err != nil {
		m.fail(fmt.Errorf("failed to override column %s: %w", col.storeName(), err))
		return nil
	}

	col.Codec = codec
	return col
}

// Extend derives a model from the mapper's model, failing with the first
// recorded mapper error if there is one.
func (m *Mapper) Extend(name string, attrs ...Attr) (*Model, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.model.Extend(name, attrs...)
}

func (m *Mapper) clone(ref ColumnRef) *Column {
	if m.err != nil {
		return nil
	}
	if ref == nil {
		m.fail(fmt.Errorf("%w: nil column reference", ErrUnknownColumn))
		return nil
	}

	col, err := ref.columnOf(m.model)
	if err != nil {
		m.fail(err)
		return nil
	}
	return col.Clone()
}

func (m *Mapper) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}
