// Package config loads protomap CLI settings from a config file, PROTOMAP_*
// environment variables and flags, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/protomap"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, as in PROTOMAP_TABLE_NAME.
const EnvPrefix = "PROTOMAP"

// Config holds the settings of one shared table deployment.
type Config struct {
	TableName     string        `mapstructure:"table_name"`
	HashKey       string        `mapstructure:"hash_key"`
	RangeKey      string        `mapstructure:"range_key"`
	PaginationTTL time.Duration `mapstructure:"pagination_ttl"`

	AWSRegion          string `mapstructure:"aws_region"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	DynamoDBEndpoint   string `mapstructure:"dynamodb_endpoint"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// New returns a viper instance with defaults, config search paths and
// environment binding set up. Callers may bind flags before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("protomap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("table_name", "SharedBase")
	v.SetDefault("hash_key", "hk")
	v.SetDefault("range_key", "rk")
	v.SetDefault("pagination_ttl", 24*time.Hour)

	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("dynamodb_endpoint", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the config file if one is found and decodes the merged settings.
// A missing file found through the search paths is not an error; a missing
// file set explicitly with SetConfigFile is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings that cannot describe a shared table.
func (c *Config) Validate() error {
	if c.TableName == "" {
		return errors.New("table_name is required")
	}
	if c.HashKey == "" || c.RangeKey == "" {
		return errors.New("hash_key and range_key are required")
	}
	if c.HashKey == c.RangeKey {
		return fmt.Errorf("hash_key and range_key must differ, both are %q", c.HashKey)
	}
	if c.PaginationTTL <= 0 {
		return fmt.Errorf("pagination_ttl must be positive, got %v", c.PaginationTTL)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Table builds the shared base model and table the settings describe.
func (c *Config) Table() (*protomap.Table, error) {
	base, err := protomap.SharedBase(func(o *protomap.SharedOptions) {
		o.TableName = c.TableName
		o.HashKeyName = c.HashKey
		o.RangeKeyName = c.RangeKey
	})
	if err != nil {
		return nil, err
	}

	table := protomap.NewTable(base)
	table.PaginationTTL = c.PaginationTTL
	return table, nil
}

// DynamoDB creates a client from the default AWS credential chain. Static
// credentials and a custom endpoint, such as DynamoDB Local, override it
// when set.
func (c *Config) DynamoDB(ctx context.Context) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			c.AWSAccessKeyID,
			c.AWSSecretAccessKey,
			"",
		))
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(c.DynamoDBEndpoint)
		}
	}), nil
}
