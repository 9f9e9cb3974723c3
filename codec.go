package protomap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Codec converts a Go value to and from its DynamoDB attribute representation.
//
// Encode returns a nil attribute value for a nil input, in which case the attribute
// is omitted from the item. Decode returns a nil value for a nil attribute.
type Codec interface {
	Encode(ctx context.Context, v any) (types.AttributeValue, error)
	Decode(ctx context.Context, av types.AttributeValue) (any, error)
	// ScalarType reports the key attribute type produced by Encode, or an empty
	// string if the codec cannot back a key attribute.
	ScalarType() types.ScalarAttributeType
}

// CodecDef defines a codec either as a Codec instance or as a constructor
// with the signature func() Codec.
type CodecDef = any

// Built-in codecs.
var (
	String   Codec = StringCodec{}
	Int      Codec = IntCodec{}
	Float    Codec = FloatCodec{}
	Bool     Codec = BoolCodec{}
	Binary   Codec = BinaryCodec{}
	Time     Codec = TimeCodec{}
	UnixTime Codec = UnixTimeCodec{}
	UUID     Codec = UUIDCodec{}
)

// resolveCodec returns the codec described by def.
func resolveCodec(def CodecDef) (Codec, error) {
	switch d := def.(type) {
	case Codec:
		return d, nil
	case func() Codec:
		if c := d(); c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: expected %T to be a Codec or func() Codec", ErrInvalidCodec, def)
}

func invalidValue(codec string, v any) error {
	return fmt.Errorf("%w: %s codec cannot handle %T", ErrInvalidValue, codec, v)
}

// StringCodec stores Go strings as S attributes.
type StringCodec struct{}

func (StringCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &types.AttributeValueMemberS{Value: s}, nil
	case *string:
		if s == nil {
			return nil, nil
		}
		return &types.AttributeValueMemberS{Value: *s}, nil
	}
	return nil, invalidValue("string", v)
}

func (StringCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch s := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		return s.Value, nil
	}
	return nil, invalidValue("string", av)
}

func (StringCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeS }

// IntCodec stores any Go integer as an N attribute and decodes to int64.
// Encode also accepts integral json.Number values.
type IntCodec struct{}

func (IntCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return attributevalue.Marshal(v)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return attributevalue.Marshal(i)
	}
	return nil, invalidValue("int", v)
}

func (IntCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberN:
		var out int64
		if err := attributevalue.Unmarshal(av, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return out, nil
	}
	return nil, invalidValue("int", av)
}

func (IntCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeN }

// FloatCodec stores Go floats as N attributes and decodes to float64.
// Encode also accepts json.Number values.
type FloatCodec struct{}

func (FloatCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float32, float64:
		return attributevalue.Marshal(v)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return attributevalue.Marshal(f)
	}
	return nil, invalidValue("float", v)
}

func (FloatCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberN:
		var out float64
		if err := attributevalue.Unmarshal(av, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return out, nil
	}
	return nil, invalidValue("float", av)
}

func (FloatCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeN }

// BoolCodec stores Go booleans as BOOL attributes.
type BoolCodec struct{}

func (BoolCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	}
	return nil, invalidValue("bool", v)
}

func (BoolCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch b := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberBOOL:
		return b.Value, nil
	}
	return nil, invalidValue("bool", av)
}

func (BoolCodec) ScalarType() types.ScalarAttributeType { return "" }

// BinaryCodec stores byte slices as B attributes.
type BinaryCodec struct{}

func (BinaryCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		if b == nil {
			return nil, nil
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	}
	return nil, invalidValue("binary", v)
}

func (BinaryCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch b := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberB:
		return b.Value, nil
	}
	return nil, invalidValue("binary", av)
}

func (BinaryCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeB }

// TimeCodec stores time.Time as an RFC3339 S attribute in UTC, which keeps
// stored timestamps lexically sortable. Encode also accepts RFC3339 strings.
type TimeCodec struct{}

func (TimeCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return &types.AttributeValueMemberS{Value: parsed.UTC().Format(time.RFC3339Nano)}, nil
	}
	return nil, invalidValue("time", v)
}

func (TimeCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch s := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		t, err := time.Parse(time.RFC3339Nano, s.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return t.UTC(), nil
	}
	return nil, invalidValue("time", av)
}

func (TimeCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeS }

// UnixTimeCodec stores time.Time as epoch seconds in an N attribute,
// the format DynamoDB expects for time-to-live attributes. Encode also accepts
// json.Number seconds.
type UnixTimeCodec struct{}

func (UnixTimeCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if t.IsZero() {
			return nil, nil
		}
		return attributevalue.Marshal(attributevalue.UnixTime(t))
	case json.Number:
		sec, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return attributevalue.Marshal(attributevalue.UnixTime(time.Unix(sec, 0)))
	}
	return nil, invalidValue("unix time", v)
}

func (UnixTimeCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberN:
		var ut attributevalue.UnixTime
		if err := attributevalue.Unmarshal(av, &ut); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return time.Time(ut).UTC(), nil
	}
	return nil, invalidValue("unix time", av)
}

func (UnixTimeCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeN }

// UUIDCodec stores uuid.UUID values in their canonical S form.
// Encode also accepts strings, which must parse as UUIDs.
type UUIDCodec struct{}

func (UUIDCodec) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch id := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return &types.AttributeValueMemberS{Value: id.String()}, nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return &types.AttributeValueMemberS{Value: parsed.String()}, nil
	}
	return nil, invalidValue("uuid", v)
}

func (UUIDCodec) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	switch s := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		id, err := uuid.Parse(s.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return id, nil
	}
	return nil, invalidValue("uuid", av)
}

func (UUIDCodec) ScalarType() types.ScalarAttributeType { return types.ScalarAttributeTypeS }

// DocumentCodec stores any Go value through the attributevalue encoder,
// honoring dynamodbav struct tags. Decode always returns a T.
type DocumentCodec[T any] struct{}

// Document returns a DocumentCodec for T. It satisfies func() Codec, so it
// can be passed uninstantiated wherever a CodecDef is expected.
func Document[T any]() Codec {
	return DocumentCodec[T]{}
}

func (DocumentCodec[T]) Encode(_ context.Context, v any) (types.AttributeValue, error) {
	switch doc := v.(type) {
	case nil:
		return nil, nil
	case T:
		return attributevalue.Marshal(doc)
	case *T:
		if doc == nil {
			return nil, nil
		}
		return attributevalue.Marshal(*doc)
	}
	return nil, invalidValue("document", v)
}

func (DocumentCodec[T]) Decode(_ context.Context, av types.AttributeValue) (any, error) {
	if av == nil {
		return nil, nil
	}
	if _, ok := av.(*types.AttributeValueMemberNULL); ok {
		return nil, nil
	}
	var out T
	if err := attributevalue.Unmarshal(av, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return out, nil
}

func (DocumentCodec[T]) ScalarType() types.ScalarAttributeType { return "" }
