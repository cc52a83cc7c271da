package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	appconfig "github.com/catechize/playback/internal/config"
	"github.com/catechize/playback/internal/domain"
)

// Item key layout: one table, "pk" partitions podcasts from episodes.
const (
	podcastPrefix = "podcast#"
	episodePrefix = "episode#"
)

// Client wraps the AWS DynamoDB client for the podcast/episode catalog
type Client struct {
	client    *dynamodb.Client
	tableName string
}

// NewClient creates a new DynamoDB client
func NewClient(ctx context.Context, cfg appconfig.AWSConfig) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.DynamoDBTable,
	}, nil
}

// CreatePodcast creates a new podcast record
func (c *Client) CreatePodcast(ctx context.Context, podcast *domain.Podcast) error {
	av, err := attributevalue.MarshalMap(podcast)
	if err != nil {
		return fmt.Errorf("failed to marshal podcast: %w", err)
	}
	av["pk"] = &types.AttributeValueMemberS{Value: podcastPrefix + podcast.ID}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create podcast: %w", err)
	}
	return nil
}

// GetPodcast retrieves a podcast by ID
func (c *Client) GetPodcast(ctx context.Context, id string) (*domain.Podcast, error) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: podcastPrefix + id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}
	if result.Item == nil {
		return nil, domain.ErrPodcastNotFound
	}

	var podcast domain.Podcast
	if err := attributevalue.UnmarshalMap(result.Item, &podcast); err != nil {
		return nil, fmt.Errorf("failed to unmarshal podcast: %w", err)
	}
	return &podcast, nil
}

// UpdatePodcast overwrites an existing podcast record
func (c *Client) UpdatePodcast(ctx context.Context, podcast *domain.Podcast) error {
	podcast.UpdatedAt = time.Now()

	av, err := attributevalue.MarshalMap(podcast)
	if err != nil {
		return fmt.Errorf("failed to marshal podcast: %w", err)
	}
	av["pk"] = &types.AttributeValueMemberS{Value: podcastPrefix + podcast.ID}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to update podcast: %w", err)
	}
	return nil
}

// DeletePodcast removes a podcast record
func (c *Client) DeletePodcast(ctx context.Context, id string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: podcastPrefix + id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete podcast: %w", err)
	}
	return nil
}

// ListPodcasts retrieves podcasts up to limit
func (c *Client) ListPodcasts(ctx context.Context, limit int32) ([]*domain.Podcast, error) {
	filter := expression.BeginsWith(expression.Name("pk"), podcastPrefix)
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := c.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(c.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list podcasts: %w", err)
	}

	podcasts := make([]*domain.Podcast, 0, len(result.Items))
	for _, item := range result.Items {
		var podcast domain.Podcast
		if err := attributevalue.UnmarshalMap(item, &podcast); err != nil {
			return nil, fmt.Errorf("failed to unmarshal podcast: %w", err)
		}
		podcasts = append(podcasts, &podcast)
	}
	return podcasts, nil
}

// CreateEpisode creates a new episode record
func (c *Client) CreateEpisode(ctx context.Context, episode *domain.Episode) error {
	av, err := attributevalue.MarshalMap(episode)
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}
	av["pk"] = &types.AttributeValueMemberS{Value: episodePrefix + episode.ID}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}
	return nil
}

// GetEpisode retrieves an episode by ID
func (c *Client) GetEpisode(ctx context.Context, id string) (*domain.Episode, error) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: episodePrefix + id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	if result.Item == nil {
		return nil, domain.ErrEpisodeNotFound
	}

	var episode domain.Episode
	if err := attributevalue.UnmarshalMap(result.Item, &episode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episode: %w", err)
	}
	return &episode, nil
}

// UpdateEpisode overwrites an existing episode record
func (c *Client) UpdateEpisode(ctx context.Context, episode *domain.Episode) error {
	episode.UpdatedAt = time.Now()

	av, err := attributevalue.MarshalMap(episode)
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}
	av["pk"] = &types.AttributeValueMemberS{Value: episodePrefix + episode.ID}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}
	return nil
}

// DeleteEpisode removes an episode record
func (c *Client) DeleteEpisode(ctx context.Context, id string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: episodePrefix + id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete episode: %w", err)
	}
	return nil
}

// ListEpisodesByPodcast retrieves all episodes of one podcast via the
// podcast_id index
func (c *Client) ListEpisodesByPodcast(ctx context.Context, podcastID string, limit int32) ([]*domain.Episode, error) {
	keyExpr := expression.Key("podcast_id").Equal(expression.Value(podcastID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(c.tableName),
		IndexName:                 aws.String("podcast_id-index"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}

	episodes := make([]*domain.Episode, 0, len(result.Items))
	for _, item := range result.Items {
		var episode domain.Episode
		if err := attributevalue.UnmarshalMap(item, &episode); err != nil {
			return nil, fmt.Errorf("failed to unmarshal episode: %w", err)
		}
		episodes = append(episodes, &episode)
	}
	return episodes, nil
}

// IncrementEpisodeCounters bumps the play and completion counters. Either
// delta may be zero.
func (c *Client) IncrementEpisodeCounters(ctx context.Context, id string, plays, completions int64) error {
	update := expression.Add(
		expression.Name("play_count"),
		expression.Value(plays),
	).Add(
		expression.Name("complete_count"),
		expression.Value(completions),
	).Set(
		expression.Name("updated_at"),
		expression.Value(time.Now()),
	)

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: episodePrefix + id},
		},
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		UpdateExpression:          expr.Update(),
	})
	if err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}
	return nil
}
