package protomap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

const (
	// MaxBatchSize is the maximum number of items allowed in a DynamoDB batch operation.
	MaxBatchSize = 25

	// TimeToLiveAttribute is the attribute DynamoDB expires items on in a shared table.
	TimeToLiveAttribute = "expires"
)

// Table contains the configuration of one physical table shared by several models.
type Table struct {
	TableName     string             // Main table name
	Base          *Model             // Shared base model defining the key schema
	PaginationTTL time.Duration      // TTL for pagination cursors stored in table
	Logger        logrus.FieldLogger // Debug logging of marshaled requests
	models        []*Model
}

// NewTable creates a new Table for the shared base with default configuration.
func NewTable(base *Model) *Table {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &Table{
		TableName:     base.TableName(),
		Base:          base,
		PaginationTTL: 24 * time.Hour,
		Logger:        logger,
	}
}

// Register adds models that Unmarshal may resolve items to. Models are tried in
// registration order.
func (t *Table) Register(models ...*Model) *Table {
	t.models = append(t.models, models...)
	return t
}

// Models returns the registered models.
func (t *Table) Models() []*Model {
	out := make([]*Model, len(t.models))
	copy(out, t.models)
	return out
}

// Entity pairs a model with the values of one item.
type Entity struct {
	Model  *Model
	Values Values
}

// MarshalPut marshals the values into a dynamodb put item input request.
func (t *Table) MarshalPut(ctx context.Context, model *Model, values Values) (*dynamodb.PutItemInput, error) {
	item, err := model.Dump(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	t.Logger.WithFields(logrus.Fields{"table": t.TableName, "model": model.Name()}).Debug("marshaled put")

	return &dynamodb.PutItemInput{
		TableName: aws.String(t.TableName),
		Item:      item,
	}, nil
}

// MarshalBatch marshals the entities into batch write put requests. Since there
// is a limit on how many requests can be contained in a single input, the
// requests are chunked in sizes of 25 or less.
func (t *Table) MarshalBatch(ctx context.Context, entities ...Entity) ([]*dynamodb.BatchWriteItemInput, error) {
	var batches []*dynamodb.BatchWriteItemInput

	for i := 0; i < len(entities); i += MaxBatchSize {
		end := min(i+MaxBatchSize, len(entities))

		var writeRequests []types.WriteRequest
		for _, entity := range entities[i:end] {
			item, err := entity.Model.Dump(ctx, entity.Values)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal item: %w", err)
			}

			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		batches = append(batches, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				t.TableName: writeRequests,
			},
		})
	}

	t.Logger.WithFields(logrus.Fields{"table": t.TableName, "batches": len(batches)}).Debug("marshaled batch")
	return batches, nil
}

// MarshalGet marshals the key of values into a get item request.
func (t *Table) MarshalGet(ctx context.Context, model *Model, values Values) (*dynamodb.GetItemInput, error) {
	key, err := model.Key(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	return &dynamodb.GetItemInput{
		TableName: aws.String(t.TableName),
		Key:       key,
	}, nil
}

// MarshalDelete marshals the key of values into a delete item request.
func (t *Table) MarshalDelete(ctx context.Context, model *Model, values Values) (*dynamodb.DeleteItemInput, error) {
	key, err := model.Key(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	return &dynamodb.DeleteItemInput{
		TableName: aws.String(t.TableName),
		Key:       key,
	}, nil
}

// UpdateOptions contains configuration options for MarshalUpdate.
type UpdateOptions struct {
	Condition expression.ConditionBuilder // Optional condition the item must meet
}

// MarshalUpdate marshals values into an update item request. The key is taken
// from values; every other provided attribute is set, or removed if it encodes
// to nil.
func (t *Table) MarshalUpdate(ctx context.Context, model *Model, values Values, opts ...func(*UpdateOptions)) (*dynamodb.UpdateItemInput, error) {
	var options UpdateOptions
	for _, opt := range opts {
		opt(&options)
	}

	key, err := model.Key(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	for name := range values {
		if model.Column(name) == nil {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, model.Name(), name)
		}
	}

	var (
		update expression.UpdateBuilder
		empty  = true
	)

	for _, col := range model.Columns() {
		if col.HashKey || col.RangeKey {
			continue
		}
		v, ok := values[col.Name]
		if !ok {
			continue
		}
		av, err := col.Codec.Encode(ctx, v)
		if err != nil {
			return nil, &ColumnError{Model: model.Name(), Column: col.Name, Operation: "encode", Err: err}
		}

		name := expression.Name(col.storeName())
		if av == nil {
			update = update.Remove(name)
		} else {
			update = update.Set(name, expression.Value(rawValue{av}))
		}
		empty = false
	}

	if empty {
		return nil, fmt.Errorf("%w: nothing to update on %s", ErrInvalidValue, model.Name())
	}

	builder := expression.NewBuilder().WithUpdate(update)
	if options.Condition.IsSet() {
		builder = builder.WithCondition(options.Condition)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	t.Logger.WithFields(logrus.Fields{"table": t.TableName, "model": model.Name()}).Debug("marshaled update")

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.TableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if options.Condition.IsSet() {
		input.ConditionExpression = expr.Condition()
	}
	return input, nil
}

// MarshalQuery marshals the query into a query request against the table.
func (t *Table) MarshalQuery(ctx context.Context, q *Query) (*dynamodb.QueryInput, error) {
	input, err := q.MarshalQuery(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	input.TableName = aws.String(t.TableName)
	t.Logger.WithFields(logrus.Fields{"table": t.TableName, "model": q.Model.Name()}).Debug("marshaled query")
	return input, nil
}

// Unmarshal resolves the registered model an item belongs to and loads it.
// Models whose static or prefixed columns reject the item are skipped; if no
// model accepts the item, ErrNoModel is returned.
func (t *Table) Unmarshal(ctx context.Context, item Item) (*Model, Values, error) {
	for _, model := range t.models {
		values, err := model.Load(ctx, item)
		if err == nil {
			return model, values, nil
		}
		if errors.Is(err, ErrStaticMismatch) || errors.Is(err, ErrMalformedValue) {
			t.Logger.WithField("model", model.Name()).WithError(err).Debug("model rejected item")
			continue
		}
		return nil, nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return nil, nil, ErrNoModel
}

// UnmarshalList loads every item with model.
func UnmarshalList(ctx context.Context, model *Model, items []Item) ([]Values, error) {
	out := make([]Values, 0, len(items))
	for i, item := range items {
		values, err := model.Load(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal item %d: %w", i, err)
		}
		out = append(out, values)
	}
	return out, nil
}

// CreateTableInput describes the shared table derived from the base model's
// key columns, billed on demand.
func (t *Table) CreateTableInput() (*dynamodb.CreateTableInput, error) {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(t.TableName),
		BillingMode: types.BillingModePayPerRequest,
	}

	for _, col := range []*Column{t.Base.HashKey(), t.Base.RangeKey()} {
		if col == nil {
			continue
		}

		scalar := col.Codec.ScalarType()
		if scalar == "" {
			return nil, fmt.Errorf("%w: key column %s cannot be stored as a key", ErrInvalidCodec, col.Name)
		}

		keyType := types.KeyTypeHash
		if col.RangeKey {
			keyType = types.KeyTypeRange
		}

		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(col.storeName()),
			AttributeType: scalar,
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(col.storeName()),
			KeyType:       keyType,
		})
	}

	if len(input.KeySchema) == 0 || input.KeySchema[0].KeyType != types.KeyTypeHash {
		return nil, fmt.Errorf("%w: %s has no hash key", ErrMissingKey, t.Base.Name())
	}

	return input, nil
}

// UpdateTimeToLiveInput enables expiry on TimeToLiveAttribute.
func (t *Table) UpdateTimeToLiveInput() *dynamodb.UpdateTimeToLiveInput {
	return &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(t.TableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(TimeToLiveAttribute),
			Enabled:       aws.Bool(true),
		},
	}
}
