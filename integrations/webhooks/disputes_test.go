package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/native/arbitration"
)

func TestDispatcherSignsDisputeEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Payload
		sigOK    bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, p)
		sigOK = r.Header.Get(HeaderSignature) == Sign([]byte("secret"), body) &&
			r.Header.Get(HeaderEvent) == p.Type
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	dispatcher.Emit(events.Typed{Evt: &types.Event{Type: "escrow.item.listed"}})
	dispatcher.Emit(events.Typed{Evt: &types.Event{
		Type:       arbitration.EventTypeDisputeFinalized,
		Attributes: map[string]string{"transactionId": "9"},
	}})

	waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	}, time.Second)
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(received))
	}
	if received[0].Type != arbitration.EventTypeDisputeFinalized || received[0].Attributes["transactionId"] != "9" {
		t.Fatalf("unexpected payload %+v", received[0])
	}
	if received[0].DeliveryID == "" {
		t.Fatalf("expected delivery id")
	}
	if !sigOK {
		t.Fatalf("signature or event header mismatch")
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, time.Millisecond*10, time.Millisecond*20))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.Enqueue(Payload{Type: arbitration.EventTypeDisputeOpened}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected retries, got %d", attempts)
	}
}

func TestDispatcherRequiresEndpointAndSecret(t *testing.T) {
	if _, err := NewDispatcher("", []byte("s")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://localhost", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
}
