package protomap

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func init() {
	// Last evaluated keys are gob-encoded as Items, so every member type must be known.
	gob.Register(Item{})
	gob.Register(&types.AttributeValueMemberS{})
	gob.Register(&types.AttributeValueMemberN{})
	gob.Register(&types.AttributeValueMemberB{})
	gob.Register(&types.AttributeValueMemberSS{})
	gob.Register(&types.AttributeValueMemberNS{})
	gob.Register(&types.AttributeValueMemberBS{})
	gob.Register(&types.AttributeValueMemberM{})
	gob.Register(&types.AttributeValueMemberL{})
	gob.Register(&types.AttributeValueMemberNULL{})
	gob.Register(&types.AttributeValueMemberBOOL{})
}

const (
	// CursorPartition is the static hash key value of stored page cursors.
	CursorPartition = "page"

	// CursorPrefix namespaces page cursors on the range key.
	CursorPrefix = "cursor::"
)

// Paginator trades query LastEvaluatedKeys for opaque client cursors and back.
type Paginator interface {
	// PageCursor returns the cursor for lastkey, or "" when lastkey is empty.
	PageCursor(ctx context.Context, lastkey Item) (string, error)
	// StartKey returns the key a cursor stands for, or nil when cursor is "".
	StartKey(ctx context.Context, cursor string) (Item, error)
}

// TablePaginator implements Paginator by storing start keys in the shared table
// as items of a cursor model derived from the table's base:
//
//	| hk   | rk               | key         | expires    |
//	| ==== | ================ | =========== | ========== |
//	| page | cursor::<cursor> | <gob bytes> | <unixtime> |
type TablePaginator struct {
	table  *Table         // table configuration
	client DynamoDBClient // dynamodb client
	tick   Clock          // current time for cursor expiry
}

// Paginator returns a Paginator to extract and generate client cursors.
func (t *Table) Paginator(client DynamoDBClient) Paginator {
	return &TablePaginator{
		table:  t,
		client: client,
		tick:   DefaultClock,
	}
}

// CursorModel returns the model page cursors are stored with.
func (t *Table) CursorModel() (*Model, error) {
	m := NewMapper(t.Base)
	return m.Extend("PageCursor",
		As("partition", m.Static(String, t.Base.HashKey(), CursorPartition)),
		As("cursor", m.Prefix(String, t.Base.RangeKey(), CursorPrefix)),
		As("key", MustColumn(Binary)),
		As(TimeToLiveAttribute, MustColumn(UnixTime)),
	)
}

// PageCursor stores the last evaluated key in the table and returns its cursor.
// If lastkey is empty, an empty string is returned.
func (p *TablePaginator) PageCursor(ctx context.Context, lastkey Item) (string, error) {
	if len(lastkey) == 0 {
		return "", nil
	}

	model, err := p.table.CursorModel()
	if err != nil {
		return "", fmt.Errorf("failed to build cursor model: %w", err)
	}

	cursor, err := generateCursor(p.tick())
	if err != nil {
		return "", fmt.Errorf("failed to generate cursor: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(lastkey); err != nil {
		return "", fmt.Errorf("failed to encode last key: %w", err)
	}

	putInput, err := p.table.MarshalPut(ctx, model, Values{
		"cursor":            cursor,
		"key":               buf.Bytes(),
		TimeToLiveAttribute: p.tick().Add(p.table.PaginationTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal page cursor: %w", err)
	}

	if _, err := p.client.PutItem(ctx, putInput); err != nil {
		return "", fmt.Errorf("failed to store page cursor: %w", err)
	}

	return cursor, nil
}

// StartKey retrieves the key stored under cursor. A missing or expired cursor
// yields a nil key.
func (p *TablePaginator) StartKey(ctx context.Context, cursor string) (Item, error) {
	if cursor == "" {
		return nil, nil
	}

	model, err := p.table.CursorModel()
	if err != nil {
		return nil, fmt.Errorf("failed to build cursor model: %w", err)
	}

	getInput, err := p.table.MarshalGet(ctx, model, Values{"cursor": cursor})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal get request: %w", err)
	}

	result, err := p.client.GetItem(ctx, getInput)
	if err != nil {
		return nil, fmt.Errorf("failed to get page cursor: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	values, err := model.Load(ctx, result.Item)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal page cursor: %w", err)
	}

	// DynamoDB removes expired items lazily.
	if expires, ok := Field[time.Time](values, TimeToLiveAttribute); ok && expires.Before(p.tick()) {
		return nil, nil
	}

	data, _ := Field[[]byte](values, "key")
	if len(data) == 0 {
		return nil, nil
	}

	var key Item
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&key); err != nil {
		return nil, fmt.Errorf("failed to decode last key: %w", err)
	}

	return key, nil
}

// MarshalStartKey marshals a page key into a page cursor to return to clients.
func MarshalStartKey(ctx context.Context, p Paginator, lastkey Item) (string, error) {
	return p.PageCursor(ctx, lastkey)
}

// UnmarshalStartKey unmarshals a page key from the provided cursor.
func UnmarshalStartKey(ctx context.Context, p Paginator, cursor string) (Item, error) {
	return p.StartKey(ctx, cursor)
}

// generateCursor joins the clock reading with 8 random bytes so concurrent
// queries never share a cursor.
func generateCursor(now time.Time) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	raw := fmt.Sprintf("%d_%s", now.UnixNano(), base64.URLEncoding.EncodeToString(salt))
	return base64.URLEncoding.EncodeToString([]byte(raw)), nil
}
