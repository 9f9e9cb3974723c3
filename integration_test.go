package protomap

import (
	"context"
	"fmt"
	"log"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
)

// TestQueryingModels demonstrates querying every item of a model
func TestQueryingModels(t *testing.T) {
	t.Skip("Skipping AWS integration test")

	ctx := context.Background()
	cfg, _ := config.LoadDefaultConfig(ctx)
	ddb := dynamodb.NewFromConfig(cfg)

	base, _ := SharedBase(func(o *SharedOptions) { o.TableName = "ecommerce-table" })
	m := NewMapper(base)
	user, err := m.Extend("User",
		As("kind", m.Static(String, ColumnName("hk"), "users")),
		As("id", m.Prefix(UUID, ColumnName("rk"), "uById::")),
		As("email", MustColumn(String)),
	)
	if err != nil {
		log.Fatal(err)
	}

	store := NewStore(NewTable(base).Register(user), ddb)

	if err := store.Create(ctx, user, Values{"id": uuid.New(), "email": "a@example.com"}); err != nil {
		log.Fatal(err)
	}

	page, err := store.Query(ctx, &Query{
		Model:           user,
		ConditionFilter: expression.Name("email").AttributeExists(),
		Limit:           10,
	}, "")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d users\n", len(page.Items))
}

// TestPagingModels demonstrates walking every page of a partition
func TestPagingModels(t *testing.T) {
	t.Skip("Skipping AWS integration test")

	ctx := context.Background()
	cfg, _ := config.LoadDefaultConfig(ctx)
	ddb := dynamodb.NewFromConfig(cfg)

	base, _ := SharedBase(func(o *SharedOptions) { o.TableName = "ecommerce-table" })
	m := NewMapper(base)
	order, err := m.Extend("Order",
		As("customer", m.Prefix(String, ColumnName("hk"), "customer::")),
		As("number", m.Prefix(Int, ColumnName("rk"), "order::")),
	)
	if err != nil {
		log.Fatal(err)
	}

	store := NewStore(NewTable(base).Register(order), ddb)
	query := &Query{Model: order, Key: Values{"customer": "jane"}, Limit: 5}

	total, cursor := 0, ""
	for {
		page, err := store.Query(ctx, query, cursor)
		if err != nil {
			log.Fatal(err)
		}
		total += len(page.Items)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	fmt.Printf("Found %d orders\n", total)
}
