package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
)

// CloudWatch Logs limits
const (
	maxLogEventsPerRequest = 10000
	maxLogEventSize        = 256000 // 256 KB
)

// logsAPI is the subset of the CloudWatch Logs client used by the publisher.
type logsAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// LogsPublisherConfig holds configuration for CloudWatch Logs publishing.
type LogsPublisherConfig struct {
	LogGroupName    string
	LogStreamName   string
	Service         string // Written into every event as "service"
	Region          string
	Endpoint        string // Optional endpoint override (for LocalStack)
	AccessKeyID     string
	SecretAccessKey string
	BufferSize      int // Entries buffered before auto-flush
	FlushInterval   time.Duration
	AutoCreate      bool // Create log group/stream if missing
}

// LogsPublisher ships structured log entries to AWS CloudWatch Logs.
// Implements port.LogPublisher.
type LogsPublisher struct {
	client        logsAPI
	logGroupName  string
	logStreamName string
	service       string

	buffer     []port.LogEntry
	bufferSize int
	mu         sync.Mutex

	sequenceToken *string

	flushTicker *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewLogsPublisher creates a new CloudWatch Logs publisher and starts its flush loop.
func NewLogsPublisher(ctx context.Context, cfg LogsPublisherConfig) (*LogsPublisher, error) {
	if err := normalizeLogsConfig(&cfg); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newLogsPublisher(cloudwatchlogs.NewFromConfig(awsCfg), cfg)

	if cfg.AutoCreate {
		if err := p.ensureLogGroupAndStream(ctx); err != nil {
			return nil, fmt.Errorf("failed to create log group/stream: %w", err)
		}
	}

	p.flushTicker = time.NewTicker(cfg.FlushInterval)
	p.wg.Add(1)
	go p.flushLoop()

	return p, nil
}

func normalizeLogsConfig(cfg *LogsPublisherConfig) error {
	if cfg.LogGroupName == "" {
		return fmt.Errorf("log group name is required")
	}
	if cfg.LogStreamName == "" {
		return fmt.Errorf("log stream name is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return nil
}

func newLogsPublisher(client logsAPI, cfg LogsPublisherConfig) *LogsPublisher {
	return &LogsPublisher{
		client:        client,
		logGroupName:  cfg.LogGroupName,
		logStreamName: cfg.LogStreamName,
		service:       cfg.Service,
		buffer:        make([]port.LogEntry, 0, cfg.BufferSize),
		bufferSize:    cfg.BufferSize,
		stopCh:        make(chan struct{}),
	}
}

// Publish buffers a single log entry.
func (p *LogsPublisher) Publish(ctx context.Context, entry port.LogEntry) error {
	return p.PublishBatch(ctx, []port.LogEntry{entry})
}

// PublishBatch buffers entries and flushes when the buffer fills.
func (p *LogsPublisher) PublishBatch(ctx context.Context, entries []port.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, entries...)
	if len(p.buffer) >= p.bufferSize {
		if err := p.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered entries.
func (p *LogsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining entries.
func (p *LogsPublisher) Close(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.flushTicker != nil {
			p.flushTicker.Stop()
		}
	})
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *LogsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			// Errors are not logged here: the logger itself feeds this publisher.
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = p.Flush(ctx)
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *LogsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	// CloudWatch Logs rejects batches that are not in chronological order
	sort.SliceStable(p.buffer, func(i, j int) bool {
		return p.buffer[i].Timestamp.Before(p.buffer[j].Timestamp)
	})

	events := make([]types.InputLogEvent, 0, len(p.buffer))
	for _, entry := range p.buffer {
		event, err := p.convertToLogEvent(entry)
		if err != nil {
			continue
		}
		events = append(events, event)
	}

	for start := 0; start < len(events); start += maxLogEventsPerRequest {
		end := start + maxLogEventsPerRequest
		if end > len(events) {
			end = len(events)
		}
		if err := p.putWithRetry(ctx, events[start:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]
	return nil
}

func (p *LogsPublisher) putWithRetry(ctx context.Context, events []types.InputLogEvent) error {
	return retry(ctx, func() (bool, error) {
		output, err := p.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(p.logGroupName),
			LogStreamName: aws.String(p.logStreamName),
			LogEvents:     events,
			SequenceToken: p.sequenceToken,
		})
		if err == nil {
			p.sequenceToken = output.NextSequenceToken
			return false, nil
		}

		var invalidSeq *types.InvalidSequenceTokenException
		if errors.As(err, &invalidSeq) {
			p.sequenceToken = invalidSeq.ExpectedSequenceToken
		}
		return true, err
	})
}

// convertToLogEvent renders an entry as a single-line JSON event.
func (p *LogsPublisher) convertToLogEvent(entry port.LogEntry) (types.InputLogEvent, error) {
	payload := map[string]interface{}{
		"timestamp": entry.Timestamp.UTC().Format(time.RFC3339Nano),
		"level":     string(entry.Level),
		"message":   entry.Message,
	}
	if p.service != "" {
		payload["service"] = p.service
	}
	if len(entry.Fields) > 0 {
		payload["fields"] = entry.Fields
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("failed to marshal log entry: %w", err)
	}

	message := string(raw)
	if len(message) > maxLogEventSize {
		message = message[:maxLogEventSize-3] + "..."
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	}, nil
}

// ensureLogGroupAndStream creates the log group and stream, ignoring "already exists".
func (p *LogsPublisher) ensureLogGroupAndStream(ctx context.Context) error {
	var alreadyExists *types.ResourceAlreadyExistsException

	_, err := p.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(p.logGroupName),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log group: %w", err)
	}

	_, err = p.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(p.logGroupName),
		LogStreamName: aws.String(p.logStreamName),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log stream: %w", err)
	}

	return nil
}
