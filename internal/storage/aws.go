package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ignite/mailmerge/internal/config"
	"github.com/ignite/mailmerge/internal/domain"
)

// LoadAWSConfig resolves AWS credentials: static keys when configured,
// then a named profile, then the default chain (IAM role on ECS).
func LoadAWSConfig(ctx context.Context, cfg config.StorageConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	switch {
	case cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, "")))
	case cfg.GetAWSProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.GetAWSProfile()))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// S3API is the subset of the S3 client the backend uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func newS3Client(cfg aws.Config) S3API {
	return s3.NewFromConfig(cfg)
}

// S3Backend stores each document as <prefix><key>.json in a bucket.
type S3Backend struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Backend creates an S3Backend.
func NewS3Backend(client S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *S3Backend) objectKey(key string) string {
	return b.prefix + key + ".json"
}

func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	return data, nil
}

func (b *S3Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}
	return nil
}

// DynamoAPI is the subset of the DynamoDB client the backend uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

func newDynamoClient(cfg aws.Config) DynamoAPI {
	return dynamodb.NewFromConfig(cfg)
}

// documentItem is one document in the single-table layout.
type documentItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

const dynamoCurrentSK = "CURRENT"

// DynamoBackend stores each document under PK "DOC#<key>", SK "CURRENT".
type DynamoBackend struct {
	client DynamoAPI
	table  string
}

// NewDynamoBackend creates a DynamoBackend.
func NewDynamoBackend(client DynamoAPI, table string) *DynamoBackend {
	return &DynamoBackend{client: client, table: table}
}

func documentPK(key string) string {
	return "DOC#" + key
}

func (b *DynamoBackend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.table),
		Key: map[string]dynamotypes.AttributeValue{
			"PK": &dynamotypes.AttributeValueMemberS{Value: documentPK(key)},
			"SK": &dynamotypes.AttributeValueMemberS{Value: dynamoCurrentSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from DynamoDB: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, domain.ErrNotFound
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	return []byte(item.Data), nil
}

func (b *DynamoBackend) Put(ctx context.Context, key string, data []byte) error {
	item := documentItem{
		PK:        documentPK(key),
		SK:        dynamoCurrentSK,
		Data:      string(data),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}

	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}
