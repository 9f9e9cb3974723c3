package dynamock

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nisimpson/protomap"
)

// WithLocalDynamoDB runs a test function with a local DynamoDB instance.
// It checks if DynamoDB Local is available and skips the test if not.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}

	fn(local)
}

// NewTestTable generates a unique table name for testing.
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Port             int
	SkipIfNotRunning bool
	TablePrefix      string
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig returns a default configuration for integration tests.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest creates a uniquely named copy of table on DynamoDB Local,
// runs fn against it, and deletes it afterwards. The table passed to fn shares
// table's base and registered models.
func RunIntegrationTest(t *testing.T, config *IntegrationTestConfig, table *protomap.Table, fn func(local *LocalDynamoDB, table *protomap.Table)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := NewLocalDynamoDB(config.Port)
	ctx := context.Background()

	if !local.IsAvailable(ctx) {
		if config.SkipIfNotRunning {
			t.Skipf("DynamoDB Local not available on port %d", config.Port)
		}
		t.Fatalf("DynamoDB Local not available on port %d", config.Port)
	}

	isolated := IsolatedTable(table, config.TablePrefix)
	if err := local.CreateSharedTable(ctx, isolated); err != nil {
		t.Fatalf("Failed to create test table %s: %v", isolated.TableName, err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.CleanupTimeout)
		defer cancel()

		if err := local.DeleteTable(cleanupCtx, isolated.TableName); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", isolated.TableName, err)
		}
	}()

	fn(local, isolated)
}

// IsolatedTable returns a copy of table with a unique table name.
func IsolatedTable(table *protomap.Table, prefix string) *protomap.Table {
	isolated := protomap.NewTable(table.Base).Register(table.Models()...)
	isolated.TableName = NewTestTable(strings.ToLower(prefix))
	isolated.PaginationTTL = table.PaginationTTL
	isolated.Logger = table.Logger
	return isolated
}

// SeedTestData is a helper for seeding test data into a shared table.
type SeedTestData struct {
	store *protomap.Store
}

// NewSeedTestData creates a new test data seeder writing through client.
func NewSeedTestData(client protomap.DynamoDBClient, table *protomap.Table) *SeedTestData {
	return &SeedTestData{store: protomap.NewStore(table, client)}
}

// SeedValues seeds one item of model per values map.
func (s *SeedTestData) SeedValues(ctx context.Context, model *protomap.Model, values ...protomap.Values) error {
	for i, v := range values {
		if err := s.store.Save(ctx, model, v); err != nil {
			return fmt.Errorf("failed to seed %s item %d: %w", model.Name(), i, err)
		}
	}
	return nil
}

// SeedEntities seeds the entities with batch writes.
func (s *SeedTestData) SeedEntities(ctx context.Context, entities ...protomap.Entity) error {
	if err := s.store.SaveAll(ctx, entities...); err != nil {
		return fmt.Errorf("failed to seed entities: %w", err)
	}
	return nil
}
