package bus

import "testing"

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := New[int](10)
	ch1, _ := b.Subscribe(0)
	ch2, _ := b.Subscribe(0)

	b.Publish(42)

	if got := <-ch1; got != 42 {
		t.Fatalf("ch1 got %d, want 42", got)
	}
	if got := <-ch2; got != 42 {
		t.Fatalf("ch2 got %d, want 42", got)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New[int](10)
	ch, unsubscribe := b.Subscribe(0)
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
}

func TestBus_OverflowClosesSlowSubscriberWithoutBlockingProducer(t *testing.T) {
	b := New[int](1)
	var dropped uint64
	b.OnDrop(func(id uint64) { dropped = id })

	ch, _ := b.Subscribe(1)

	b.Publish(1) // fills the buffer
	b.Publish(2) // subscriber is now lagging, should be dropped instead of blocking

	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber count = %d, want 0 after overflow drop", got)
	}
	_ = dropped

	// The first message is still readable; the channel is then closed.
	if got := <-ch; got != 1 {
		t.Fatalf("buffered message = %d, want 1", got)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after overflow")
	}
}

func TestBus_DefaultCapacityAppliesWhenUnspecified(t *testing.T) {
	b := New[int](5)
	ch, _ := b.Subscribe(0)
	for i := 0; i < 5; i++ {
		b.Publish(i)
	}
	for i := 0; i < 5; i++ {
		if got := <-ch; got != i {
			t.Fatalf("got %d, want %d", got, i)
		}
	}
}
