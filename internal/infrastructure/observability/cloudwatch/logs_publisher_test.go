package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
)

type fakeLogs struct {
	puts          []*cloudwatchlogs.PutLogEventsInput
	putErrs       []error
	groupErr      error
	streamErr     error
	groupsCreated int
}

func (f *fakeLogs) PutLogEvents(_ context.Context, params *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		return nil, err
	}
	f.puts = append(f.puts, params)
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: aws.String("next")}, nil
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.groupsCreated++
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, f.streamErr
}

func testLogsPublisher(client logsAPI) *LogsPublisher {
	return newLogsPublisher(client, LogsPublisherConfig{
		LogGroupName:  "/plugin-monitor/test",
		LogStreamName: "api",
		Service:       "plugin-monitor-api",
		BufferSize:    50,
	})
}

func TestConvertToLogEvent(t *testing.T) {
	p := testLogsPublisher(&fakeLogs{})

	timestamp := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	event, err := p.convertToLogEvent(port.LogEntry{
		Timestamp: timestamp,
		Level:     port.LogLevelWarn,
		Message:   "Alert raised",
		Fields:    map[string]interface{}{"site_id": "site-1", "alerts": 2},
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if *event.Timestamp != timestamp.UnixMilli() {
		t.Errorf("unexpected timestamp %d", *event.Timestamp)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(*event.Message), &payload); err != nil {
		t.Fatalf("message is not JSON: %v", err)
	}
	if payload["level"] != "WARN" || payload["message"] != "Alert raised" || payload["service"] != "plugin-monitor-api" {
		t.Errorf("unexpected payload: %v", payload)
	}
	fields, ok := payload["fields"].(map[string]interface{})
	if !ok || fields["site_id"] != "site-1" || fields["alerts"].(float64) != 2 {
		t.Errorf("unexpected fields: %v", payload["fields"])
	}
}

func TestConvertToLogEvent_NoFields(t *testing.T) {
	p := testLogsPublisher(&fakeLogs{})

	event, err := p.convertToLogEvent(port.LogEntry{Timestamp: time.Now(), Level: port.LogLevelInfo, Message: "ok"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if strings.Contains(*event.Message, `"fields"`) {
		t.Errorf("expected no fields key, got %s", *event.Message)
	}
}

func TestConvertToLogEvent_Truncation(t *testing.T) {
	p := testLogsPublisher(&fakeLogs{})

	event, err := p.convertToLogEvent(port.LogEntry{
		Timestamp: time.Now(),
		Level:     port.LogLevelError,
		Message:   strings.Repeat("x", maxLogEventSize+100),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(*event.Message) != maxLogEventSize {
		t.Fatalf("expected truncated message of %d bytes, got %d", maxLogEventSize, len(*event.Message))
	}
	if !strings.HasSuffix(*event.Message, "...") {
		t.Errorf("expected truncation marker")
	}
}

func TestFlush_SortsChronologically(t *testing.T) {
	client := &fakeLogs{}
	p := testLogsPublisher(client)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	_ = p.PublishBatch(context.Background(), []port.LogEntry{
		{Timestamp: now.Add(5 * time.Second), Level: port.LogLevelInfo, Message: "third"},
		{Timestamp: now, Level: port.LogLevelInfo, Message: "first"},
		{Timestamp: now.Add(2 * time.Second), Level: port.LogLevelInfo, Message: "second"},
	})

	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(client.puts) != 1 {
		t.Fatalf("expected one request, got %d", len(client.puts))
	}

	events := client.puts[0].LogEvents
	for i := 1; i < len(events); i++ {
		if *events[i].Timestamp < *events[i-1].Timestamp {
			t.Fatalf("events not in chronological order at %d", i)
		}
	}
	if !strings.Contains(*events[0].Message, "first") {
		t.Errorf("expected first event to be 'first', got %s", *events[0].Message)
	}
	if len(p.buffer) != 0 {
		t.Errorf("expected buffer to be cleared")
	}
}

func TestFlush_RecoversSequenceToken(t *testing.T) {
	client := &fakeLogs{putErrs: []error{
		&types.InvalidSequenceTokenException{ExpectedSequenceToken: aws.String("expected")},
	}}
	p := testLogsPublisher(client)

	_ = p.Publish(context.Background(), port.LogEntry{Timestamp: time.Now(), Level: port.LogLevelInfo, Message: "hello"})
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(client.puts) != 1 || *client.puts[0].SequenceToken != "expected" {
		t.Fatalf("expected retry with the expected sequence token")
	}
	if *p.sequenceToken != "next" {
		t.Errorf("expected sequence token to advance")
	}
}

func TestEnsureLogGroupAndStream(t *testing.T) {
	tests := []struct {
		name      string
		client    *fakeLogs
		expectErr bool
	}{
		{name: "created", client: &fakeLogs{}},
		{name: "already exists", client: &fakeLogs{
			groupErr:  &types.ResourceAlreadyExistsException{},
			streamErr: &types.ResourceAlreadyExistsException{},
		}},
		{name: "access denied", client: &fakeLogs{groupErr: errors.New("access denied")}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testLogsPublisher(tt.client).ensureLogGroupAndStream(context.Background())
			if (err != nil) != tt.expectErr {
				t.Fatalf("expectErr=%v, got %v", tt.expectErr, err)
			}
		})
	}
}

func TestNormalizeLogsConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    LogsPublisherConfig
		expectErr bool
	}{
		{name: "valid", config: LogsPublisherConfig{LogGroupName: "/g", LogStreamName: "s", Region: "us-east-1"}},
		{name: "missing log group", config: LogsPublisherConfig{LogStreamName: "s", Region: "us-east-1"}, expectErr: true},
		{name: "missing log stream", config: LogsPublisherConfig{LogGroupName: "/g", Region: "us-east-1"}, expectErr: true},
		{name: "missing region", config: LogsPublisherConfig{LogGroupName: "/g", LogStreamName: "s"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := normalizeLogsConfig(&cfg)
			if (err != nil) != tt.expectErr {
				t.Fatalf("expectErr=%v, got %v", tt.expectErr, err)
			}
			if err == nil && (cfg.BufferSize != 50 || cfg.FlushInterval != 5*time.Second) {
				t.Fatalf("defaults not applied: %+v", cfg)
			}
		})
	}
}
