// Command protomap provisions the physical DynamoDB table behind a shared base.
//
// Usage:
//
//	protomap [flags] describe
//	protomap [flags] create-table
//	protomap [flags] delete-table
//
// Settings come from protomap.yaml, PROTOMAP_* environment variables and flags.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/protomap"
	"github.com/nisimpson/protomap/internal/config"
	"github.com/nisimpson/protomap/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// tableAPI is the part of the DynamoDB client the provisioning commands use.
type tableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

type app struct {
	stdout    io.Writer
	stderr    io.Writer
	newClient func(ctx context.Context, cfg *config.Config) (tableAPI, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		newClient: func(ctx context.Context, cfg *config.Config) (tableAPI, error) {
			return cfg.DynamoDB(ctx)
		},
	}

	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "protomap:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	v := config.New()

	fs := pflag.NewFlagSet("protomap", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configFile := fs.String("config", "", "config file (default ./protomap.yaml)")
	wait := fs.Duration("wait", 2*time.Minute, "how long to wait for table status changes")
	fs.String("table-name", "", "physical table name")
	fs.String("hash-key", "", "hash key attribute name")
	fs.String("range-key", "", "range key attribute name")
	fs.String("region", "", "AWS region")
	fs.String("endpoint", "", "DynamoDB endpoint, such as http://localhost:8000")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "json or text")

	if err := fs.Parse(args); err != nil {
		return err
	}

	for key, flag := range map[string]string{
		"table_name":        "table-name",
		"hash_key":          "hash-key",
		"range_key":         "range-key",
		"aws_region":        "region",
		"dynamodb_endpoint": "endpoint",
		"log_level":         "log-level",
		"log_format":        "log-format",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("expected one command: describe, create-table or delete-table")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log := logger.NewWithOutput(cfg.LogLevel, cfg.LogFormat, a.stderr)

	table, err := cfg.Table()
	if err != nil {
		return err
	}
	table.Logger = log

	command := fs.Arg(0)
	if command == "describe" {
		return a.describe(table)
	}

	client, err := a.newClient(ctx, cfg)
	if err != nil {
		return err
	}

	entry := log.WithField("table", table.TableName)
	switch command {
	case "create-table":
		return createTable(ctx, client, table, *wait, entry)
	case "delete-table":
		return deleteTable(ctx, client, table, *wait, entry)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) describe(table *protomap.Table) error {
	input, err := table.CreateTableInput()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(struct {
		Create *dynamodb.CreateTableInput
		TTL    *dynamodb.UpdateTimeToLiveInput
	}{input, table.UpdateTimeToLiveInput()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table description: %w", err)
	}

	_, err = fmt.Fprintln(a.stdout, string(out))
	return err
}

func createTable(ctx context.Context, client tableAPI, table *protomap.Table, wait time.Duration, log logrus.FieldLogger) error {
	input, err := table.CreateTableInput()
	if err != nil {
		return err
	}

	if _, err := client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.TableName, err)
	}
	log.Info("table creation started")

	waiter := dynamodb.NewTableExistsWaiter(client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = time.Second
		o.MaxDelay = 5 * time.Second
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table.TableName)}, wait); err != nil {
		return fmt.Errorf("table %s did not become active: %w", table.TableName, err)
	}

	if _, err := client.UpdateTimeToLive(ctx, table.UpdateTimeToLiveInput()); err != nil {
		return fmt.Errorf("failed to enable ttl on %s: %w", table.TableName, err)
	}

	log.WithField("ttl", protomap.TimeToLiveAttribute).Info("table active")
	return nil
}

func deleteTable(ctx context.Context, client tableAPI, table *protomap.Table, wait time.Duration, log logrus.FieldLogger) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(table.TableName)})
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", table.TableName, err)
	}
	log.Info("table deletion started")

	waiter := dynamodb.NewTableNotExistsWaiter(client, func(o *dynamodb.TableNotExistsWaiterOptions) {
		o.MinDelay = time.Second
		o.MaxDelay = 5 * time.Second
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table.TableName)}, wait); err != nil {
		return fmt.Errorf("table %s was not deleted: %w", table.TableName, err)
	}

	log.Info("table deleted")
	return nil
}
