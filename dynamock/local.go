package dynamock

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/protomap"
)

// DefaultLocalPort is the port DynamoDB Local listens on unless told otherwise.
const DefaultLocalPort = 8000

// tableWait bounds every table status change made by LocalDynamoDB.
const tableWait = 30 * time.Second

// LocalDynamoDB is a DynamoDB Local instance and a client pointed at it.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// NewLocalClient returns a client for DynamoDB Local on port with throwaway
// static credentials.
//
//	client := dynamock.NewLocalClient(8000)
//	store := protomap.NewStore(table, client)
func NewLocalClient(port int) *dynamodb.Client {
	// DynamoDB Local ignores the region but the signer needs one
	return NewLocalClientFromConfig(aws.Config{Region: "us-east-1"}, port)
}

// NewLocalClientFromConfig is NewLocalClient starting from cfg. Static local
// credentials are filled in when cfg has none.
func NewLocalClientFromConfig(cfg aws.Config, port int) *dynamodb.Client {
	if cfg.Credentials == nil {
		cfg.Credentials = credentials.NewStaticCredentialsProvider("local", "local", "")
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(localEndpoint(port))
	})
}

// NewLocalDynamoDB describes DynamoDB Local on port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: localEndpoint(port),
		Port:     port,
	}
}

// NewDefaultLocalDynamoDB describes DynamoDB Local on DefaultLocalPort.
func NewDefaultLocalDynamoDB() *LocalDynamoDB {
	return NewLocalDynamoDB(DefaultLocalPort)
}

func localEndpoint(port int) string {
	return "http://" + net.JoinHostPort("localhost", strconv.Itoa(port))
}

// IsAvailable reports whether something is listening on the port and answers
// ListTables.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort("localhost", strconv.Itoa(l.Port)))
	if err != nil {
		return false
	}
	conn.Close()

	_, err = l.Client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err == nil
}

// WaitForAvailable polls IsAvailable until it succeeds or timeout elapses.
func (l *LocalDynamoDB) WaitForAvailable(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.IsAvailable(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("DynamoDB Local not available at %s after %v", l.Endpoint, timeout)
		case <-ticker.C:
		}
	}
}

// CreateSharedTable creates the physical table behind table's shared base,
// waits for it to become active and enables expiry on
// protomap.TimeToLiveAttribute so stale page cursors are reaped.
func (l *LocalDynamoDB) CreateSharedTable(ctx context.Context, table *protomap.Table) error {
	input, err := table.CreateTableInput()
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", table.TableName, err)
	}

	if _, err := l.Client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.TableName, err)
	}

	if err := l.WaitForTableActive(ctx, table.TableName, tableWait); err != nil {
		return err
	}

	if _, err := l.Client.UpdateTimeToLive(ctx, table.UpdateTimeToLiveInput()); err != nil {
		return fmt.Errorf("failed to enable ttl on %s: %w", table.TableName, err)
	}
	return nil
}

// WaitForTableActive blocks until tableName is ACTIVE.
func (l *LocalDynamoDB) WaitForTableActive(ctx context.Context, tableName string, timeout time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(l.Client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = 200 * time.Millisecond
		o.MaxDelay = time.Second
	})

	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, timeout)
	if err != nil {
		return fmt.Errorf("table %s did not become active: %w", tableName, err)
	}
	return nil
}

// DeleteTable deletes tableName and waits until it is gone.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, tableName string) error {
	_, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName)})
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableName, err)
	}

	return l.WaitForTableDeleted(ctx, tableName, tableWait)
}

// WaitForTableDeleted blocks until DescribeTable reports tableName missing.
func (l *LocalDynamoDB) WaitForTableDeleted(ctx context.Context, tableName string, timeout time.Duration) error {
	waiter := dynamodb.NewTableNotExistsWaiter(l.Client, func(o *dynamodb.TableNotExistsWaiterOptions) {
		o.MinDelay = 200 * time.Millisecond
		o.MaxDelay = time.Second
	})

	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, timeout)
	if err != nil {
		return fmt.Errorf("table %s was not deleted: %w", tableName, err)
	}
	return nil
}

// ListTables returns the names of the local tables.
func (l *LocalDynamoDB) ListTables(ctx context.Context) ([]string, error) {
	var names []string

	paginator := dynamodb.NewListTablesPaginator(l.Client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		names = append(names, page.TableNames...)
	}
	return names, nil
}
