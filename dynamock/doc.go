// Package dynamock provides testing utilities for the protomap library.
//
// This package includes:
//   - Expectation-based mock DynamoDB client for unit testing
//   - Local DynamoDB integration utilities
//   - Test data seeding from values or JSON fixtures
//   - Integration test utilities with automatic cleanup
//
// # Mock Client
//
// The MockClient provides an expectation-based mock implementation where you set
// expectations for specific operations. Any operation without an expectation
// fails the test:
//
//	mock := dynamock.NewMockClient(t)
//
//	// Set expectation for PutItem
//	mock.PutFunc = func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
//		// Verify the operation parameters
//		return &dynamodb.PutItemOutput{}, nil
//	}
//
//	// Or use the canned expectations
//	var written []protomap.Item
//	mock.CapturePuts(&written).ReturnItems(items...)
//
//	store := protomap.NewStore(table, mock)
//
// # Local DynamoDB
//
// For integration testing, the package provides utilities to work with
// local DynamoDB instances:
//
//	local := dynamock.NewLocalDynamoDB(8000)
//	if local.IsAvailable(ctx) {
//		err := local.CreateSharedTable(ctx, table)
//		// ... run tests
//		err = local.DeleteTable(ctx, table.TableName)
//	}
//
// # Integration Test Helpers
//
// RunIntegrationTest creates an isolated copy of a shared table, runs the test
// and deletes the table afterwards:
//
//	dynamock.RunIntegrationTest(t, nil, table, func(local *dynamock.LocalDynamoDB, table *protomap.Table) {
//		store := protomap.NewStore(table, local.Client)
//		// Your integration test code here
//	})
//
// # Test Data Seeding
//
// Seed items of registered models:
//
//	seeder := dynamock.NewSeedTestData(client, table)
//
//	err := seeder.SeedValues(ctx, user, protomap.Values{"id": id, "email": "a@example.com"})
//
//	// Or from a JSON fixture
//	n, err := seeder.SeedFromJSON(ctx, strings.NewReader(`[
//		{"model": "User", "values": {"id": "6f1c0d3e-...", "email": "a@example.com"}}
//	]`))
package dynamock
