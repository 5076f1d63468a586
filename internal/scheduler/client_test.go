package scheduler

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type testSchedulerConfig struct {
	url   string
	queue string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.url }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 2 }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Error("expected error without redis url")
	}
}

func TestClientEnqueueHeightRetransform(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{url: "redis://" + mr.Addr(), queue: "imports"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = client.Close() }()

	err = client.EnqueueHeightRetransform(context.Background(), HeightRetransformPayload{
		LayerID: uuid.NewString(),
		JobID:   uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// The task must land in the configured queue, not the default one.
	foundQueue := false
	for _, key := range mr.Keys() {
		if strings.Contains(key, "{imports}") {
			foundQueue = true
			break
		}
	}
	if !foundQueue {
		t.Errorf("no keys for queue 'imports' in redis: %v", mr.Keys())
	}
}

func TestHeightRetransformTaskRoundTrip(t *testing.T) {
	payload := HeightRetransformPayload{LayerID: uuid.NewString(), JobID: uuid.NewString()}

	task, err := NewHeightRetransformTask(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TaskHeightRetransform {
		t.Errorf("task type = %q, want %q", task.Type(), TaskHeightRetransform)
	}

	got, err := ParseHeightRetransformPayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != payload {
		t.Errorf("round trip mismatch: %+v != %+v", got, payload)
	}
}
