package protomap

import (
	"context"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Query searches one partition of the shared table for items of a model.
//
// The hash key is taken from Key, falling back to the column default, so a
// static hash key needs no value. The range key condition is, in order of
// precedence: RangeFilter if set; equality if Key (or a default) provides the
// range value; begins_with on the prefix if the range column is prefixed.
type Query struct {
	Model           *Model                         // The model to query
	Key             Values                         // Hash key and optional range key values
	RangeFilter     expression.KeyConditionBuilder // Optional explicit condition on the range key
	ConditionFilter expression.ConditionBuilder    // Optional filters on the item
	Limit           int                            // Maximum number of items to return
	StartKey        Item                           // Exclusive start key for pagination
	SortDescending  bool                           // If true, scans backward
}

// MarshalQuery builds the query request without a table name.
func (q *Query) MarshalQuery(ctx context.Context) (*dynamodb.QueryInput, error) {
	hash := q.Model.HashKey()
	if hash == nil {
		return nil, fmt.Errorf("%w: %s has no hash key", ErrMissingKey, q.Model.Name())
	}

	key := make(Item, 2)
	if err := q.Model.dumpColumn(ctx, hash, q.Key, key); err != nil {
		return nil, err
	}

	hashValue, ok := key[hash.storeName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingKey, q.Model.Name(), hash.Name)
	}

	keyCondition := expression.Key(hash.storeName()).Equal(expression.Value(rawValue{hashValue}))

	rangeCondition, err := q.rangeCondition(ctx, key)
	if err != nil {
		return nil, err
	}
	if rangeCondition.IsSet() {
		keyCondition = keyCondition.And(rangeCondition)
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCondition)

	if q.ConditionFilter.IsSet() {
		builder = builder.WithFilter(q.ConditionFilter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.SortDescending),
	}

	if q.ConditionFilter.IsSet() {
		input.FilterExpression = expr.Filter()
	}

	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(min(q.Limit, math.MaxInt32)))
	}

	if q.StartKey != nil {
		input.ExclusiveStartKey = q.StartKey
	}

	return input, nil
}

func (q *Query) rangeCondition(ctx context.Context, key Item) (expression.KeyConditionBuilder, error) {
	if q.RangeFilter.IsSet() {
		return q.RangeFilter, nil
	}

	rng := q.Model.RangeKey()
	if rng == nil {
		return expression.KeyConditionBuilder{}, nil
	}

	if err := q.Model.dumpColumn(ctx, rng, q.Key, key); err != nil {
		return expression.KeyConditionBuilder{}, err
	}

	if rangeValue, ok := key[rng.storeName()]; ok {
		return expression.Key(rng.storeName()).Equal(expression.Value(rawValue{rangeValue})), nil
	}

	if prefixed, ok := rng.Codec.(*PrefixCodec); ok {
		return expression.Key(rng.storeName()).BeginsWith(prefixed.Prefix()), nil
	}

	return expression.KeyConditionBuilder{}, nil
}

// rawValue passes an already encoded attribute value through the expression builder.
type rawValue struct {
	av types.AttributeValue
}

func (r rawValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return r.av, nil
}
