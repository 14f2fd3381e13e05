package deadletter

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSPublisher mirrors dead-letter records onto an SQS queue for ops
// alerting, additive to RedisPublisher (which remains the record of
// truth per spec.md §6).
type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSPublisher resolves AWS credentials via the default chain
// (environment, shared config, EC2/ECS role) the way aira-shop's SQS
// producer does, unless accessKeyID/secretAccessKey are both set, in
// which case those static credentials override the chain — for
// deployments that provision SQS access separately from whatever role
// or profile the rest of the process runs under.
func NewSQSPublisher(ctx context.Context, queueURL, accessKeyID, secretAccessKey string) (*SQSPublisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &SQSPublisher{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	body := string(data)
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
	})
	return err
}
