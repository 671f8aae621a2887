package workout

import "testing"

func Test_setNotifier(t *testing.T) {
	t.Parallel()

	n := newSetNotifier()
	first, unsubscribeFirst := n.subscribe("run-1")
	second, unsubscribeSecond := n.subscribe("run-1")
	other, unsubscribeOther := n.subscribe("run-2")
	defer unsubscribeOther()

	if got := n.subscribers("run-1"); got != 2 {
		t.Fatalf("subscribers = %d, want 2", got)
	}

	// Signals coalesce while the subscriber is busy.
	n.notify("run-1")
	n.notify("run-1")
	for _, ch := range []<-chan struct{}{first, second} {
		select {
		case <-ch:
		default:
			t.Error("expected a pending signal")
		}
		select {
		case <-ch:
			t.Error("expected signals to coalesce")
		default:
		}
	}
	select {
	case <-other:
		t.Error("subscriber of another run was notified")
	default:
	}

	unsubscribeFirst()
	unsubscribeSecond()
	if got := n.subscribers("run-1"); got != 0 {
		t.Errorf("subscribers after unsubscribe = %d, want 0", got)
	}
	n.notify("run-1")
}
