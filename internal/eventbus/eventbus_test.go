package eventbus

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type ping struct{ N int }
type pong struct{ S string }

func TestSubscribePublishByType(t *testing.T) {
	b := New()
	var got []string
	record := func(tag string) Handler[ping] {
		return func(_ context.Context, p ping) { got = append(got, tag) }
	}
	unA := SubscribeTo(b, record("a"))
	unB := SubscribeTo(b, record("b"))
	SubscribeTo(b, func(_ context.Context, p pong) { got = append(got, "pong:"+p.S) })

	PublishTo(context.Background(), b, ping{N: 1})
	PublishTo(context.Background(), b, pong{S: "x"})
	unA()
	unA()
	PublishTo(context.Background(), b, ping{N: 2})
	unB()
	PublishTo(context.Background(), b, ping{N: 3})

	want := []string{"a", "b", "pong:x", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dispatch mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobalBusDisabled(t *testing.T) {
	Use(nil)
	t.Cleanup(func() { Use(nil) })
	called := false
	un := Subscribe(func(context.Context, ping) { called = true })
	un()
	Publish(context.Background(), ping{})
	if called {
		t.Fatalf("handler must not run without a global bus")
	}

	b := New()
	Use(b)
	if Current() != b {
		t.Fatalf("Current() did not return the installed bus")
	}
	Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	if !called {
		t.Fatalf("handler did not run on the global bus")
	}
}
