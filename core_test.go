package protomap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

var fixedTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Test models sharing one table:
//
//	| hk             | rk            | model |
//	| ============== | ============= | ===== |
//	| users          | uById::<uuid> | User  |
//	| customer::<id> | order::<n>    | Order |
type fixtures struct {
	base  *Model
	user  *Model
	order *Model
}

func newFixtures(t *testing.T) fixtures {
	t.Helper()

	base, err := SharedBase(func(o *SharedOptions) {
		o.TableName = "test-table"
	})
	if err != nil {
		t.Fatalf("Failed to create shared base: %v", err)
	}

	m := NewMapper(base)
	user, err := m.Extend("User",
		As("kind", m.Static(String, ColumnName("hk"), "users")),
		As("id", m.Prefix(UUID, ColumnName("rk"), "uById::")),
		As("email", MustColumn(String)),
	)
	if err != nil {
		t.Fatalf("Failed to create user model: %v", err)
	}

	order, err := m.Extend("Order",
		As("customer", m.Prefix(String, ColumnName("hk"), "customer::")),
		As("number", m.Prefix(Int, ColumnName("rk"), "order::")),
		As("total", MustColumn(Float)),
		As("placed", MustColumn(Time)),
	)
	if err != nil {
		t.Fatalf("Failed to create order model: %v", err)
	}

	return fixtures{base: base, user: user, order: order}
}

func stringAttr(t *testing.T, item Item, name string) string {
	t.Helper()
	s, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		t.Fatalf("Expected S attribute %s, got %T", name, item[name])
	}
	return s.Value
}

func TestDefaultClock(t *testing.T) {
	now := DefaultClock()
	if now.IsZero() {
		t.Error("DefaultClock returned zero time")
	}
}

func TestSharedBase(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		base, err := SharedBase()
		if err != nil {
			t.Fatalf("Failed to create shared base: %v", err)
		}

		if base.TableName() != "SharedBase" {
			t.Errorf("Expected table name 'SharedBase', got %s", base.TableName())
		}
		if base.Abstract() {
			t.Error("Expected shared base to be concrete")
		}

		hash := base.HashKey()
		if hash == nil || hash.Name != "hk" || hash.StoreName != "hk" {
			t.Fatalf("Expected hash key hk, got %v", hash)
		}
		if hash.Codec != String {
			t.Errorf("Expected String hash key codec, got %T", hash.Codec)
		}

		rng := base.RangeKey()
		if rng == nil || rng.Name != "rk" || rng.StoreName != "rk" {
			t.Fatalf("Expected range key rk, got %v", rng)
		}
	})

	t.Run("custom key names", func(t *testing.T) {
		base, err := SharedBase(func(o *SharedOptions) {
			o.HashKeyName = "h"
			o.RangeKeyName = "r"
		})
		if err != nil {
			t.Fatalf("Failed to create shared base: %v", err)
		}

		if base.HashKey().StoreName != "h" {
			t.Errorf("Expected hash key h, got %s", base.HashKey().StoreName)
		}
		if base.RangeKey().StoreName != "r" {
			t.Errorf("Expected range key r, got %s", base.RangeKey().StoreName)
		}
		if len(base.Columns()) != 2 {
			t.Errorf("Expected 2 columns, got %d", len(base.Columns()))
		}
	})

	t.Run("base model", func(t *testing.T) {
		parent := NewModel("Audited", func(mo *ModelOptions) {
			mo.TableName = "audit-table"
		})
		if err := parent.Bind("created", MustColumn(Time), false); err != nil {
			t.Fatalf("Failed to bind column: %v", err)
		}
		if err := parent.Bind("pk", MustColumn(Int, HashKey()), false); err != nil {
			t.Fatalf("Failed to bind column: %v", err)
		}

		base, err := SharedBase(func(o *SharedOptions) {
			o.Base = parent
		})
		if err != nil {
			t.Fatalf("Failed to create shared base: %v", err)
		}

		if base.TableName() != "audit-table" {
			t.Errorf("Expected table name 'audit-table', got %s", base.TableName())
		}
		if base.Column("created") == nil {
			t.Error("Expected inherited column 'created'")
		}
		if base.Column("pk") != nil {
			t.Error("Expected base hash key to be replaced")
		}
		if base.HashKey().Name != "hk" {
			t.Errorf("Expected hash key hk, got %s", base.HashKey().Name)
		}
		if base.Parent() != parent {
			t.Error("Expected parent to be the base model")
		}
	})
}

func TestExtendSharesTableName(t *testing.T) {
	f := newFixtures(t)

	if f.user.TableName() != "test-table" {
		t.Errorf("Expected user table 'test-table', got %s", f.user.TableName())
	}
	if f.user.TableName() != f.order.TableName() {
		t.Errorf("Expected shared table name, got %s and %s", f.user.TableName(), f.order.TableName())
	}

	nested, err := f.user.Extend("Admin", As("level", MustColumn(Int)))
	if err != nil {
		t.Fatalf("Failed to extend user: %v", err)
	}

	f.base.SetTableName("renamed")
	for _, m := range []*Model{f.user, f.order, nested} {
		if m.TableName() != "renamed" {
			t.Errorf("Expected %s table 'renamed', got %s", m.Name(), m.TableName())
		}
	}
}

func TestExtendWithoutSharedBase(t *testing.T) {
	parent := NewModel("Parent")
	child, err := parent.Extend("Child")
	if err != nil {
		t.Fatalf("Failed to extend: %v", err)
	}
	if child.TableName() != "Child" {
		t.Errorf("Expected table name 'Child', got %s", child.TableName())
	}
}

func TestExtendReplacesInheritedColumns(t *testing.T) {
	f := newFixtures(t)

	if f.user.Column("hk") != nil || f.user.Column("rk") != nil {
		t.Error("Expected inherited key columns to be replaced")
	}

	kind := f.user.Column("kind")
	if kind == nil {
		t.Fatal("Expected column 'kind'")
	}
	if kind.StoreName != "hk" {
		t.Errorf("Expected 'kind' stored as hk, got %s", kind.StoreName)
	}
	if f.user.HashKey() != kind {
		t.Error("Expected 'kind' to be the hash key")
	}
	if f.user.RangeKey().Name != "id" {
		t.Errorf("Expected range key 'id', got %s", f.user.RangeKey().Name)
	}
	if f.user.ColumnByStoreName("rk") != f.user.RangeKey() {
		t.Error("Expected rk to resolve to the range key")
	}

	// the base is untouched
	if f.base.Column("hk").Codec != String {
		t.Error("Expected base hash key codec to remain String")
	}
}

func TestExtendDuplicateAttributes(t *testing.T) {
	f := newFixtures(t)

	_, err := f.base.Extend("Broken",
		As("name", MustColumn(String)),
		As("name", MustColumn(Int)),
	)
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("Expected ErrDuplicateColumn, got %v", err)
	}

	_, err = f.base.Extend("Broken",
		As("a", MustColumn(String, StoreAs("x"))),
		As("b", MustColumn(String, StoreAs("x"))),
	)
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("Expected ErrDuplicateColumn for shared storage name, got %v", err)
	}

	_, err = f.base.Extend("Broken", As("nothing", nil))
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn for nil column, got %v", err)
	}
}

func TestModelBind(t *testing.T) {
	m := NewModel("Thing")

	if err := m.Bind("id", MustColumn(String, HashKey()), false); err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}

	err := m.Bind("id", MustColumn(Int), false)
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("Expected ErrDuplicateColumn, got %v", err)
	}

	err = m.Bind("other", MustColumn(String, HashKey()), false)
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("Expected ErrDuplicateColumn for second hash key, got %v", err)
	}

	if err := m.Bind("id", MustColumn(Int), true); err != nil {
		t.Fatalf("Failed to force bind: %v", err)
	}
	if m.Column("id").Codec != Int {
		t.Error("Expected forced bind to replace the column")
	}
	if len(m.Columns()) != 1 {
		t.Errorf("Expected 1 column, got %d", len(m.Columns()))
	}
}

func TestModelDumpLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixtures(t)
	id := uuid.New()

	item, err := f.user.Dump(ctx, Values{"id": id, "email": "a@example.com"})
	if err != nil {
		t.Fatalf("Failed to dump: %v", err)
	}

	if got := stringAttr(t, item, "hk"); got != "users" {
		t.Errorf("Expected hk 'users', got %s", got)
	}
	if got := stringAttr(t, item, "rk"); got != "uById::"+id.String() {
		t.Errorf("Expected rk 'uById::%s', got %s", id, got)
	}
	if got := stringAttr(t, item, "email"); got != "a@example.com" {
		t.Errorf("Expected email, got %s", got)
	}

	values, err := f.user.Load(ctx, item)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if got, _ := Field[uuid.UUID](values, "id"); got != id {
		t.Errorf("Expected id %s, got %v", id, values["id"])
	}
	if got, _ := Field[string](values, "kind"); got != "users" {
		t.Errorf("Expected kind 'users', got %v", values["kind"])
	}
	if got, _ := Field[string](values, "email"); got != "a@example.com" {
		t.Errorf("Expected email, got %v", values["email"])
	}
}

func TestModelDumpOmitsNil(t *testing.T) {
	f := newFixtures(t)

	item, err := f.user.Dump(context.Background(), Values{"id": uuid.New()})
	if err != nil {
		t.Fatalf("Failed to dump: %v", err)
	}
	if _, ok := item["email"]; ok {
		t.Error("Expected missing email to be omitted")
	}
	if len(item) != 2 {
		t.Errorf("Expected 2 attributes, got %d", len(item))
	}
}

func TestModelDumpErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixtures(t)

	t.Run("unknown column", func(t *testing.T) {
		_, err := f.user.Dump(ctx, Values{"nickname": "x"})
		if !errors.Is(err, ErrUnknownColumn) {
			t.Errorf("Expected ErrUnknownColumn, got %v", err)
		}
	})

	t.Run("static mismatch", func(t *testing.T) {
		_, err := f.user.Dump(ctx, Values{"kind": "orders", "id": uuid.New()})
		if !errors.Is(err, ErrStaticMismatch) {
			t.Fatalf("Expected ErrStaticMismatch, got %v", err)
		}

		var colErr *ColumnError
		if !errors.As(err, &colErr) {
			t.Fatalf("Expected ColumnError, got %T", err)
		}
		if colErr.Column != "kind" || colErr.Operation != "encode" {
			t.Errorf("Expected encode error on kind, got %s %s", colErr.Operation, colErr.Column)
		}
	})

	t.Run("abstract model", func(t *testing.T) {
		abstract := NewModel("Abstract", func(mo *ModelOptions) { mo.Abstract = true })
		if _, err := abstract.Dump(ctx, Values{}); err == nil {
			t.Error("Expected error dumping abstract model")
		}
		if _, err := abstract.Load(ctx, Item{}); err == nil {
			t.Error("Expected error loading abstract model")
		}
	})
}

func TestModelKey(t *testing.T) {
	ctx := context.Background()
	f := newFixtures(t)

	t.Run("static hash key defaults", func(t *testing.T) {
		id := uuid.New()
		key, err := f.user.Key(ctx, Values{"id": id, "email": "ignored"})
		if err != nil {
			t.Fatalf("Failed to marshal key: %v", err)
		}
		if len(key) != 2 {
			t.Errorf("Expected 2 key attributes, got %d", len(key))
		}
		if got := stringAttr(t, key, "hk"); got != "users" {
			t.Errorf("Expected hk 'users', got %s", got)
		}
	})

	t.Run("missing range key", func(t *testing.T) {
		_, err := f.user.Key(ctx, Values{})
		if !errors.Is(err, ErrMissingKey) {
			t.Errorf("Expected ErrMissingKey, got %v", err)
		}
	})

	t.Run("no hash key", func(t *testing.T) {
		_, err := NewModel("Keyless").Key(ctx, Values{})
		if !errors.Is(err, ErrMissingKey) {
			t.Errorf("Expected ErrMissingKey, got %v", err)
		}
	})
}

func TestField(t *testing.T) {
	values := Values{"name": "widget", "count": int64(3)}

	if got, ok := Field[string](values, "name"); !ok || got != "widget" {
		t.Errorf("Expected 'widget', got %v", got)
	}
	if _, ok := Field[string](values, "count"); ok {
		t.Error("Expected type mismatch to report false")
	}
	if _, ok := Field[string](values, "missing"); ok {
		t.Error("Expected missing value to report false")
	}
}
