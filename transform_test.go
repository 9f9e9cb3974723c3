package protomap

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

func TestStaticCodec(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		codec, err := NewStaticCodec(String, "users")
		if err != nil {
			t.Fatalf("Failed to create codec: %v", err)
		}

		av, err := codec.Encode(ctx, "users")
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}

		v, err := codec.Decode(ctx, av)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if v != "users" {
			t.Errorf("Expected 'users', got %v", v)
		}
	})

	t.Run("normalizes through the wrapped codec", func(t *testing.T) {
		codec, err := NewStaticCodec(Int, 3)
		if err != nil {
			t.Fatalf("Failed to create codec: %v", err)
		}

		if _, err := codec.Encode(ctx, int64(3)); err != nil {
			t.Errorf("Expected int64(3) to match static 3: %v", err)
		}

		v, err := codec.Decode(ctx, &types.AttributeValueMemberN{Value: "3"})
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if v != int64(3) {
			t.Errorf("Expected int64(3), got %v", v)
		}
	})

	t.Run("nil passes through encode", func(t *testing.T) {
		codec, _ := NewStaticCodec(String, "users")

		av, err := codec.Encode(ctx, nil)
		if err != nil {
			t.Fatalf("Expected nil to pass, got %v", err)
		}
		if av != nil {
			t.Errorf("Expected nil attribute, got %v", av)
		}
	})

	t.Run("encode mismatch", func(t *testing.T) {
		codec, _ := NewStaticCodec(String, "users")

		for _, v := range []any{"orders", 42} {
			_, err := codec.Encode(ctx, v)
			if !errors.Is(err, ErrStaticMismatch) {
				t.Errorf("Expected ErrStaticMismatch for %v, got %v", v, err)
			}
		}
	})

	t.Run("decode mismatch", func(t *testing.T) {
		codec, _ := NewStaticCodec(String, "users")

		_, err := codec.Decode(ctx, &types.AttributeValueMemberS{Value: "orders"})
		if !errors.Is(err, ErrStaticMismatch) {
			t.Fatalf("Expected ErrStaticMismatch, got %v", err)
		}

		var valueErr *ValueError
		if !errors.As(err, &valueErr) {
			t.Fatalf("Expected ValueError, got %T", err)
		}
		if valueErr.Value != "orders" || valueErr.Want != "users" {
			t.Errorf("Expected orders/users, got %v/%v", valueErr.Value, valueErr.Want)
		}
		if !strings.Contains(err.Error(), "static users") {
			t.Errorf("Expected message to name the static value, got %s", err)
		}
	})

	t.Run("missing attribute mismatches", func(t *testing.T) {
		codec, _ := NewStaticCodec(String, "users")

		_, err := codec.Decode(ctx, nil)
		if !errors.Is(err, ErrStaticMismatch) {
			t.Errorf("Expected ErrStaticMismatch, got %v", err)
		}
	})

	t.Run("invalid static value", func(t *testing.T) {
		_, err := NewStaticCodec(String, 42)
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("invalid codec", func(t *testing.T) {
		_, err := NewStaticCodec("String", "users")
		if !errors.Is(err, ErrInvalidCodec) {
			t.Errorf("Expected ErrInvalidCodec, got %v", err)
		}
	})
}

func TestPrefixCodec(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	tests := []struct {
		name   string
		def    CodecDef
		value  any
		stored string
	}{
		{"string", String, "abc", "p::abc"},
		{"int", Int, int64(42), "p::42"},
		{"uuid", UUID, id, "p::" + id.String()},
		{"empty", String, "", "p::"},
		{"contains prefix", String, "p::x", "p::p::x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := NewPrefixCodec(tt.def, "p::")
			if err != nil {
				t.Fatalf("Failed to create codec: %v", err)
			}

			av, err := codec.Encode(ctx, tt.value)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			s, ok := av.(*types.AttributeValueMemberS)
			if !ok {
				t.Fatalf("Expected S attribute, got %T", av)
			}
			if s.Value != tt.stored {
				t.Errorf("Expected %s, got %s", tt.stored, s.Value)
			}

			v, err := codec.Decode(ctx, av)
			if err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if v != tt.value {
				t.Errorf("Expected %v, got %v", tt.value, v)
			}
		})
	}
}

func TestPrefixCodecErrors(t *testing.T) {
	ctx := context.Background()
	codec, err := NewPrefixCodec(String, "uById::")
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}

	t.Run("missing prefix", func(t *testing.T) {
		_, err := codec.Decode(ctx, &types.AttributeValueMemberS{Value: "abc"})
		if !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("Expected ErrMalformedValue, got %v", err)
		}
		if !strings.Contains(err.Error(), "missing prefix uById::") {
			t.Errorf("Expected message to name the prefix, got %s", err)
		}
	})

	t.Run("prefix not at start", func(t *testing.T) {
		_, err := codec.Decode(ctx, &types.AttributeValueMemberS{Value: "xuById::abc"})
		if !errors.Is(err, ErrMalformedValue) {
			t.Errorf("Expected ErrMalformedValue, got %v", err)
		}
	})

	t.Run("non string attribute", func(t *testing.T) {
		_, err := codec.Decode(ctx, &types.AttributeValueMemberN{Value: "1"})
		if !errors.Is(err, ErrMalformedValue) {
			t.Errorf("Expected ErrMalformedValue, got %v", err)
		}
	})

	t.Run("nil passes through", func(t *testing.T) {
		av, err := codec.Encode(ctx, nil)
		if err != nil || av != nil {
			t.Errorf("Expected nil, got %v %v", av, err)
		}
		v, err := codec.Decode(ctx, nil)
		if err != nil || v != nil {
			t.Errorf("Expected nil, got %v %v", v, err)
		}
	})

	t.Run("inner codec failure", func(t *testing.T) {
		uuidCodec, _ := NewPrefixCodec(UUID, "u::")
		_, err := uuidCodec.Decode(ctx, &types.AttributeValueMemberS{Value: "u::not-a-uuid"})
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Expected ErrInvalidValue, got %v", err)
		}
	})

	t.Run("binary inner codec", func(t *testing.T) {
		_, err := NewPrefixCodec(Binary, "b::")
		if !errors.Is(err, ErrInvalidCodec) {
			t.Errorf("Expected ErrInvalidCodec, got %v", err)
		}
	})

	t.Run("document inner codec", func(t *testing.T) {
		_, err := NewPrefixCodec(Document[map[string]string], "d::")
		if !errors.Is(err, ErrInvalidCodec) {
			t.Errorf("Expected ErrInvalidCodec, got %v", err)
		}
	})
}
