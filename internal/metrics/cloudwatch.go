package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatch metric and dimension names.
const (
	MetricRequest        = "Request"
	MetricRequestLatency = "RequestLatency"
	MetricSubmission     = "Submission"
	MetricSheetsAppend   = "SheetsAppend"

	DimRoute   = "Route"
	DimStatus  = "Status"
	DimVariant = "Variant"
	DimOutcome = "Outcome"
)

const (
	cloudWatchBatchSize   = 20
	cloudWatchPutDeadline = 5 * time.Second
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch buffers datums and publishes them in batches. Observations never
// block on the network unless a batch fills up; Flush and Close push the rest.
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewCloudWatch creates a CloudWatch collector publishing to namespace.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// NewCloudWatchFromConfig builds the SDK client, honoring a LocalStack
// endpoint override.
func NewCloudWatchFromConfig(awsCfg aws.Config, endpointURL, namespace string, logger *slog.Logger) *CloudWatch {
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})
	return NewCloudWatch(client, namespace, logger)
}

func (c *CloudWatch) RecordRequest(method, route, status string, duration time.Duration) {
	routeDim := dimension(DimRoute, method+" "+route)
	c.add(
		c.datum(MetricRequest, 1, cwtypes.StandardUnitCount, routeDim, dimension(DimStatus, status)),
		c.datum(MetricRequestLatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, routeDim),
	)
}

func (c *CloudWatch) RecordSubmission(variant, outcome string) {
	c.add(c.datum(MetricSubmission, 1, cwtypes.StandardUnitCount,
		dimension(DimVariant, variant), dimension(DimOutcome, outcome)))
}

func (c *CloudWatch) RecordSheetsAppend(variant, outcome string) {
	c.add(c.datum(MetricSheetsAppend, 1, cwtypes.StandardUnitCount,
		dimension(DimVariant, variant), dimension(DimOutcome, outcome)))
}

// Flush publishes every buffered datum.
func (c *CloudWatch) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.publish(ctx, batch)
}

// Close flushes the buffer. It implements io.Closer for server shutdown.
func (c *CloudWatch) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cloudWatchPutDeadline)
	defer cancel()
	c.Flush(ctx)
	return nil
}

func (c *CloudWatch) add(data ...cwtypes.MetricDatum) {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	var batch []cwtypes.MetricDatum
	if len(c.pending) >= cloudWatchBatchSize {
		batch = c.pending
		c.pending = nil
	}
	c.mu.Unlock()

	if batch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cloudWatchPutDeadline)
		defer cancel()
		c.publish(ctx, batch)
	}
}

func (c *CloudWatch) publish(ctx context.Context, data []cwtypes.MetricDatum) {
	for len(data) > 0 {
		n := min(len(data), cloudWatchBatchSize)
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: data[:n],
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to publish metrics", "error", err, "datums", n)
		}
		data = data[n:]
	}
}

func (c *CloudWatch) datum(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(c.now()),
		Dimensions: dims,
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

var _ Collector = (*CloudWatch)(nil)
