package assert

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nisimpson/protomap"
)

func newTable(t *testing.T) (*protomap.Table, *protomap.Model, *protomap.Model) {
	t.Helper()

	base, err := protomap.SharedBase()
	if err != nil {
		t.Fatalf("Failed to create shared base: %v", err)
	}

	m := protomap.NewMapper(base)
	user, err := m.Extend("User",
		protomap.As("kind", m.Static(protomap.String, protomap.ColumnName("hk"), "users")),
		protomap.As("id", m.Prefix(protomap.UUID, protomap.ColumnName("rk"), "uById::")),
		protomap.As("email", protomap.MustColumn(protomap.String)),
	)
	if err != nil {
		t.Fatalf("Failed to create user model: %v", err)
	}

	order, err := m.Extend("Order",
		protomap.As("customer", m.Prefix(protomap.String, protomap.ColumnName("hk"), "customer::")),
		protomap.As("number", m.Prefix(protomap.Int, protomap.ColumnName("rk"), "order::")),
	)
	if err != nil {
		t.Fatalf("Failed to create order model: %v", err)
	}

	return protomap.NewTable(base).Register(user, order), user, order
}

func dump(t *testing.T, model *protomap.Model, values protomap.Values) protomap.Item {
	t.Helper()
	item, err := model.Dump(context.Background(), values)
	if err != nil {
		t.Fatalf("Failed to dump %s: %v", model.Name(), err)
	}
	return item
}

func TestItems(t *testing.T) {
	table, user, order := newTable(t)

	users := []protomap.Item{
		dump(t, user, protomap.Values{"id": uuid.New(), "email": "a@example.com"}),
		dump(t, user, protomap.Values{"id": uuid.New(), "email": "b@example.com"}),
	}

	Items(t, users).
		HasCount(2).
		IsNotEmpty().
		HasAttribute("hk", "users").
		HasAttribute("email", "b@example.com").
		HasPrefixedAttribute("rk", "uById::").
		ResolvesTo(table, "User")

	mixed := append(users, dump(t, order, protomap.Values{"customer": "jane", "number": 1}))

	Items(t, mixed).
		HasCount(3).
		ContainsModel(table, "User").
		ContainsModel(table, "Order")

	Items(t, nil).IsEmpty()
}

func TestItem(t *testing.T) {
	table, _, order := newTable(t)
	item := dump(t, order, protomap.Values{"customer": "jane", "number": 42})

	Item(t, item).
		HasKey("hk", "customer::jane").
		HasAttribute("rk", "order::42").
		HasPrefixedAttribute("rk", "order::").
		LacksAttribute("customer").
		LacksAttribute("number").
		ResolvesTo(table, "Order")
}
