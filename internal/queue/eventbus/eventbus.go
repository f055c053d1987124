// Package eventbus is the managed transport backend: render requests are
// published to an SNS topic and consumed by an external subscription.
// There is no queryable per-message state; job truth stays in the record
// store. This trades observability for operational simplicity and
// horizontal scaling.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"

	"subburner/internal/config"
)

// RenderRequested is the event published for each admitted render.
type RenderRequested struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	VideoID   string `json:"video_id"`
	SourceKey string `json:"source_key"`
}

type Publisher struct {
	svc      snsiface.SNSAPI
	topicARN string
}

func New(cfg *config.Config) *Publisher {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.AWSAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			cfg.AWSAccessKey, cfg.AWSSecretKey, "")
	}
	if cfg.AWSEndpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.AWSEndpoint)
	}

	sess := session.Must(session.NewSession(awsCfg))

	return &Publisher{
		svc:      sns.New(sess),
		topicARN: cfg.EventBusTopicARN,
	}
}

// NewWithClient builds a publisher around an existing SNS client.
func NewWithClient(svc snsiface.SNSAPI, topicARN string) *Publisher {
	return &Publisher{svc: svc, topicARN: topicARN}
}

func (p *Publisher) Name() string { return "eventbus" }

// Publish sends one event carrying the job id and payload. The job id
// rides along as a message attribute so subscribers can filter or dedupe
// without parsing the body.
func (p *Publisher) Publish(ctx context.Context, jobID string, ev RenderRequested) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.svc.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"job_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(jobID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", jobID, err)
	}
	return nil
}
