package protomap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// Store executes table requests with a DynamoDB client.
type Store struct {
	Table     *Table
	Client    DynamoDBClient
	Paginator Paginator

	BatchRetries int           // Resubmissions of unprocessed batch items before SaveAll gives up
	BatchBackoff time.Duration // First delay before resubmitting; doubles on every retry
}

// NewStore creates a Store whose page cursors are kept in the table itself.
func NewStore(table *Table, client DynamoDBClient) *Store {
	return &Store{
		Table:     table,
		Client:    client,
		Paginator: table.Paginator(client),

		BatchRetries: 10,
		BatchBackoff: 10 * time.Millisecond,
	}
}

func (s *Store) log(model *Model) logrus.FieldLogger {
	return s.Table.Logger.WithFields(logrus.Fields{"table": s.Table.TableName, "model": model.Name()})
}

// Save writes values as an item of model, replacing any existing item.
func (s *Store) Save(ctx context.Context, model *Model, values Values) error {
	input, err := s.Table.MarshalPut(ctx, model, values)
	if err != nil {
		return err
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		s.log(model).WithError(err).Error("put item failed")
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// Create writes values as a new item of model. If an item with the same key
// exists, ErrConditionFailed is returned.
func (s *Store) Create(ctx context.Context, model *Model, values Values) error {
	hash := model.HashKey()
	if hash == nil {
		return fmt.Errorf("%w: %s has no hash key", ErrMissingKey, model.Name())
	}

	input, err := s.Table.MarshalPut(ctx, model, values)
	if err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(hash.storeName()))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	input.ConditionExpression = expr.Condition()
	input.ExpressionAttributeNames = expr.Names()

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		return s.classify(model, "put item", err)
	}
	return nil
}

// SaveAll writes the entities with batch requests. Unprocessed items are
// resubmitted with exponential backoff; after BatchRetries resubmissions
// ErrUnprocessedItems is returned.
func (s *Store) SaveAll(ctx context.Context, entities ...Entity) error {
	batches, err := s.Table.MarshalBatch(ctx, entities...)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		for retries := 0; len(batch.RequestItems) > 0; retries++ {
			if retries > 0 {
				if retries > s.BatchRetries {
					return fmt.Errorf("%w: %d requests after %d retries", ErrUnprocessedItems, countRequests(batch), s.BatchRetries)
				}
				s.Table.Logger.WithField("retry", retries).Debug("resubmitting unprocessed items")

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.BatchBackoff << (retries - 1)):
				}
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			output, err := s.Client.BatchWriteItem(ctx, batch)
			if err != nil {
				return fmt.Errorf("failed to batch write: %w", err)
			}

			batch = &dynamodb.BatchWriteItemInput{RequestItems: output.UnprocessedItems}
		}
	}
	return nil
}

func countRequests(batch *dynamodb.BatchWriteItemInput) int {
	n := 0
	for _, requests := range batch.RequestItems {
		n += len(requests)
	}
	return n
}

// Get reads the item of model identified by the key in values.
// If the item does not exist, ErrItemNotFound is returned.
func (s *Store) Get(ctx context.Context, model *Model, key Values) (Values, error) {
	input, err := s.Table.MarshalGet(ctx, model, key)
	if err != nil {
		return nil, err
	}
	input.ConsistentRead = aws.Bool(true)

	output, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if output.Item == nil {
		return nil, ErrItemNotFound
	}

	return model.Load(ctx, output.Item)
}

// Update sets the non-key attributes in values on an existing item of model.
// If the item does not exist, ErrConditionFailed is returned.
func (s *Store) Update(ctx context.Context, model *Model, values Values) error {
	hash := model.HashKey()
	if hash == nil {
		return fmt.Errorf("%w: %s has no hash key", ErrMissingKey, model.Name())
	}

	input, err := s.Table.MarshalUpdate(ctx, model, values, func(o *UpdateOptions) {
		o.Condition = expression.AttributeExists(expression.Name(hash.storeName()))
	})
	if err != nil {
		return err
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		return s.classify(model, "update item", err)
	}
	return nil
}

// Delete removes the item of model identified by the key in values.
func (s *Store) Delete(ctx context.Context, model *Model, key Values) error {
	input, err := s.Table.MarshalDelete(ctx, model, key)
	if err != nil {
		return err
	}

	if _, err := s.Client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// Page is one page of query results.
type Page struct {
	Items  []Values // Decoded items
	Cursor string   // Cursor for the next page, empty on the last page
}

// Query runs q starting at cursor and returns one page of decoded items.
func (s *Store) Query(ctx context.Context, q *Query, cursor string) (*Page, error) {
	startKey, err := s.Paginator.StartKey(ctx, cursor)
	if err != nil {
		return nil, err
	}

	query := *q
	if startKey != nil {
		query.StartKey = startKey
	}

	input, err := s.Table.MarshalQuery(ctx, &query)
	if err != nil {
		return nil, err
	}

	output, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	items, err := UnmarshalList(ctx, q.Model, output.Items)
	if err != nil {
		return nil, err
	}

	next, err := s.Paginator.PageCursor(ctx, output.LastEvaluatedKey)
	if err != nil {
		return nil, err
	}

	s.log(q.Model).WithField("count", len(items)).Debug("query page")
	return &Page{Items: items, Cursor: next}, nil
}

func (s *Store) classify(model *Model, operation string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
		return fmt.Errorf("failed to %s: %w", operation, ErrConditionFailed)
	}
	s.log(model).WithError(err).Errorf("%s failed", operation)
	return fmt.Errorf("failed to %s: %w", operation, err)
}
