package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
)

// CloudWatch limit
const maxMetricsPerRequest = 1000

// Metric names published for every measurement point.
const (
	MetricLoadTime         = "PluginLoadTime"
	MetricMemoryUsage      = "PluginMemoryUsage"
	MetricDBQueries        = "PluginDatabaseQueries"
	MetricErrorCount       = "PluginErrorCount"
	MetricPerformanceScore = "PluginPerformanceScore"
)

// putMetricDataAPI is the subset of the CloudWatch client used by the publisher.
type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // e.g. "PluginMonitor/Measurements"
	Region            string            // AWS region
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Added to every datum (e.g. Environment)
	BufferSize        int               // Datums buffered before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
	StorageResolution int32             // 1 or 60 seconds
	OnFlushError      func(error)       // Called when a background flush fails
}

// MetricsPublisher publishes plugin measurements to AWS CloudWatch.
// Implements port.MetricsPublisher.
type MetricsPublisher struct {
	client            putMetricDataAPI
	namespace         string
	defaultDimensions []types.Dimension
	storageResolution int32
	onFlushError      func(error)

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewMetricsPublisher creates a new CloudWatch metrics publisher and starts its flush loop.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig) (*MetricsPublisher, error) {
	if err := normalizeMetricsConfig(&cfg); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg)
	p.flushTicker = time.NewTicker(cfg.FlushInterval)

	p.wg.Add(1)
	go p.flushLoop()

	return p, nil
}

func normalizeMetricsConfig(cfg *MetricsPublisherConfig) error {
	if cfg.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.BufferSize > maxMetricsPerRequest {
		cfg.BufferSize = maxMetricsPerRequest
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}
	return nil
}

// newMetricsPublisher builds a publisher without the background loop.
func newMetricsPublisher(client putMetricDataAPI, cfg MetricsPublisherConfig) *MetricsPublisher {
	keys := make([]string, 0, len(cfg.DefaultDimensions))
	for key := range cfg.DefaultDimensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dimensions := make([]types.Dimension, 0, len(keys))
	for _, key := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(cfg.DefaultDimensions[key]),
		})
	}

	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: dimensions,
		storageResolution: cfg.StorageResolution,
		onFlushError:      cfg.OnFlushError,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		stopCh:            make(chan struct{}),
	}
}

// PublishBatch buffers the datums of every point and flushes when the buffer fills.
func (p *MetricsPublisher) PublishBatch(ctx context.Context, points []port.MeasurementPoint) error {
	if len(points) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, point := range points {
		p.buffer = append(p.buffer, p.convertToData(point)...)

		if len(p.buffer) >= p.bufferSize {
			if err := p.flushBufferUnsafe(ctx); err != nil {
				return fmt.Errorf("failed to flush buffer: %w", err)
			}
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered datums.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining datums.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.flushTicker != nil {
			p.flushTicker.Stop()
		}
	})
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(ctx); err != nil && p.onFlushError != nil {
				p.onFlushError(err)
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
// Datums of a failed chunk stay buffered for the next attempt.
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	for len(p.buffer) > 0 {
		end := len(p.buffer)
		if end > maxMetricsPerRequest {
			end = maxMetricsPerRequest
		}

		if err := p.putWithRetry(ctx, p.buffer[:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
		p.buffer = append(p.buffer[:0], p.buffer[end:]...)
	}

	return nil
}

func (p *MetricsPublisher) putWithRetry(ctx context.Context, data []types.MetricDatum) error {
	return retry(ctx, func() (bool, error) {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		return true, err
	})
}

// convertToData expands one measurement point into per-metric datums.
func (p *MetricsPublisher) convertToData(point port.MeasurementPoint) []types.MetricDatum {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions)+2)
	dimensions = append(dimensions, p.defaultDimensions...)
	dimensions = append(dimensions,
		types.Dimension{Name: aws.String("SiteId"), Value: aws.String(point.SiteID)},
		types.Dimension{Name: aws.String("PluginSlug"), Value: aws.String(point.PluginSlug)},
	)

	values := []struct {
		name  string
		value float64
		unit  types.StandardUnit
	}{
		{MetricLoadTime, point.LoadTimeMs, types.StandardUnitMilliseconds},
		{MetricMemoryUsage, point.MemoryMB, types.StandardUnitMegabytes},
		{MetricDBQueries, float64(point.DBQueries), types.StandardUnitCount},
		{MetricErrorCount, float64(point.ErrorCount), types.StandardUnitCount},
		{MetricPerformanceScore, point.Score, types.StandardUnitNone},
	}

	data := make([]types.MetricDatum, 0, len(values))
	for _, v := range values {
		datum := types.MetricDatum{
			MetricName: aws.String(v.name),
			Value:      aws.Float64(v.value),
			Unit:       v.unit,
			Timestamp:  aws.Time(point.MeasuredAt),
			Dimensions: dimensions,
		}
		if p.storageResolution > 0 {
			datum.StorageResolution = aws.Int32(p.storageResolution)
		}
		data = append(data, datum)
	}

	return data
}
