package protomap

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// StaticCodec wraps a codec so that only one exact value may be written or read.
// It is intended for discriminator columns that separate models sharing a table.
type StaticCodec struct {
	inner     Codec
	value     any
	encoded   types.AttributeValue
	canonical any
}

// NewStaticCodec wraps the codec described by def. The static value is normalized
// through the wrapped codec, so Static(Int, col, 3) matches a stored int64(3).
func NewStaticCodec(def CodecDef, value any) (*StaticCodec, error) {
	inner, err := resolveCodec(def)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	encoded, err := inner.Encode(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode static value: %w", err)
	}

	canonical, err := inner.Decode(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode static value: %w", err)
	}

	return &StaticCodec{
		inner:     inner,
		value:     value,
		encoded:   encoded,
		canonical: canonical,
	}, nil
}

// Value returns the static value the codec enforces.
func (c *StaticCodec) Value() any { return c.value }

// Encode passes nil through and otherwise rejects any value whose encoding
// differs from the static value's.
func (c *StaticCodec) Encode(ctx context.Context, v any) (types.AttributeValue, error) {
	av, err := c.inner.Encode(ctx, v)
	if err != nil {
		if v != nil {
			return nil, &ValueError{Err: ErrStaticMismatch, Value: v, Want: c.value}
		}
		return nil, err
	}
	if v != nil && !reflect.DeepEqual(av, c.encoded) {
		return nil, &ValueError{Err: ErrStaticMismatch, Value: v, Want: c.value}
	}
	return av, nil
}

// Decode loads the value with the wrapped codec and rejects anything other than
// the static value, including a missing attribute.
func (c *StaticCodec) Decode(ctx context.Context, av types.AttributeValue) (any, error) {
	v, err := c.inner.Decode(ctx, av)
	if err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(v, c.canonical) {
		return nil, &ValueError{Err: ErrStaticMismatch, Value: v, Want: c.value}
	}
	return v, nil
}

func (c *StaticCodec) ScalarType() types.ScalarAttributeType { return c.inner.ScalarType() }

// PrefixCodec wraps a scalar codec and namespaces its stored form with a fixed
// string prefix. The stored attribute is always S.
type PrefixCodec struct {
	inner  Codec
	prefix string
}

// NewPrefixCodec wraps the codec described by def. The wrapped codec must store
// S or N attributes.
func NewPrefixCodec(def CodecDef, prefix string) (*PrefixCodec, error) {
	inner, err := resolveCodec(def)
	if err != nil {
		return nil, err
	}

	switch inner.ScalarType() {
	case types.ScalarAttributeTypeS, types.ScalarAttributeTypeN:
	default:
		return nil, fmt.Errorf("%w: cannot prefix %T values", ErrInvalidCodec, inner)
	}

	return &PrefixCodec{inner: inner, prefix: prefix}, nil
}

// Prefix returns the prefix the codec prepends.
func (c *PrefixCodec) Prefix() string { return c.prefix }

func (c *PrefixCodec) Encode(ctx context.Context, v any) (types.AttributeValue, error) {
	av, err := c.inner.Encode(ctx, v)
	if err != nil || av == nil {
		return nil, err
	}

	switch s := av.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: c.prefix + s.Value}, nil
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberS{Value: c.prefix + s.Value}, nil
	}
	return nil, invalidValue("prefix", av)
}

// Decode strips the prefix and decodes the remainder with the wrapped codec.
func (c *PrefixCodec) Decode(ctx context.Context, av types.AttributeValue) (any, error) {
	switch s := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return c.inner.Decode(ctx, nil)
	case *types.AttributeValueMemberS:
		rest, ok := strings.CutPrefix(s.Value, c.prefix)
		if !ok {
			return nil, &ValueError{Err: ErrMalformedValue, Value: s.Value, Want: c.prefix}
		}
		if c.inner.ScalarType() == types.ScalarAttributeTypeN {
			return c.inner.Decode(ctx, &types.AttributeValueMemberN{Value: rest})
		}
		return c.inner.Decode(ctx, &types.AttributeValueMemberS{Value: rest})
	}
	return nil, &ValueError{Err: ErrMalformedValue, Value: av, Want: c.prefix}
}

func (c *PrefixCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeS }
