package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonRealtimeConnect)
	if Reason(err) != ReasonRealtimeConnect {
		t.Fatalf("expected reason %s, got %s", ReasonRealtimeConnect, Reason(err))
	}
	if !HasReason(err, ReasonRealtimeConnect) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonCodecFrame)
	second := Wrap(first, ReasonStorageWrite)
	if Reason(second) != ReasonCodecFrame {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonStorageWrite) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
