package events

import (
	"reflect"
	"testing"

	"lendchain/core/types"
)

func typed(name string) Event {
	return Typed{Evt: &types.Event{Type: name, Attributes: map[string]string{}}}
}

func TestBufferFlushPreservesOrder(t *testing.T) {
	rec := &Recorder{}
	buf := NewBuffer(rec)
	buf.Emit(typed("a"))
	buf.Emit(typed("b"))
	if got := len(rec.Events()); got != 0 {
		t.Fatalf("expected nothing delivered before flush, got %d", got)
	}
	buf.Flush()
	if !reflect.DeepEqual(rec.Types(), []string{"a", "b"}) {
		t.Fatalf("unexpected order: %v", rec.Types())
	}
	if len(buf.Pending()) != 0 {
		t.Fatalf("expected empty buffer after flush")
	}
}

func TestBufferDiscardDropsEvents(t *testing.T) {
	rec := &Recorder{}
	buf := NewBuffer(rec)
	buf.Emit(typed("a"))
	buf.Discard()
	buf.Flush()
	if len(rec.Events()) != 0 {
		t.Fatalf("discarded events were delivered: %v", rec.Types())
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	Fanout{first, nil, second}.Emit(typed("x"))
	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Fatalf("fanout did not reach every emitter")
	}
}
