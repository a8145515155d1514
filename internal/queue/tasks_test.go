package queue

import (
	"encoding/json"
	"testing"

	"github.com/quickbite/internal/config"
)

func TestNewPaymentIncidentAlertTask(t *testing.T) {
	task, err := NewPaymentIncidentAlertTask(PaymentIncidentAlertPayload{IncidentID: 3, TransactionID: "12_123456"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskPaymentIncidentAlert {
		t.Fatalf("unexpected task type %s", task.Type())
	}
	var payload PaymentIncidentAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.IncidentID != 3 || payload.TransactionID != "12_123456" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueueOrderPlacedNotify(OrderPlacedNotifyPayload{OrderID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
}

func TestBuildServerConfigDefaultsIncludeCriticalQueue(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected addr %s", opt.Addr)
	}
	if cfg.Queues[CriticalQueue] == 0 {
		t.Fatalf("critical queue should be configured, got %v", cfg.Queues)
	}
}
