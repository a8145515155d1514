package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeService struct {
	name     string
	startErr error
	block    bool
	order    *[]string
	mu       *sync.Mutex
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return nil
	}
	return f.startErr
}

func (f *fakeService) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.order = append(*f.order, f.name)
	return nil
}

func newFakes(names ...string) ([]Service, *[]string) {
	var mu sync.Mutex
	order := []string{}
	services := make([]Service, 0, len(names))
	for _, name := range names {
		services = append(services, &fakeService{name: name, block: true, order: &order, mu: &mu})
	}
	return services, &order
}

func TestRunnerStopsInReverseOrderOnCancel(t *testing.T) {
	services, order := newFakes("http", "realtime", "worker")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewRunner(services...).Run(ctx, time.Second, nil)
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancelled runner should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
	want := []string{"worker", "realtime", "http"}
	if len(*order) != len(want) {
		t.Fatalf("unexpected stop order: %v", *order)
	}
	for i := range want {
		if (*order)[i] != want[i] {
			t.Fatalf("unexpected stop order: %v", *order)
		}
	}
}

func TestRunnerReturnsFirstServiceError(t *testing.T) {
	services, order := newFakes("http")
	boom := errors.New("listen failed")
	var mu sync.Mutex
	services = append(services, &fakeService{name: "worker", startErr: boom, order: order, mu: &mu})
	err := NewRunner(services...).Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error without services")
	}
}
