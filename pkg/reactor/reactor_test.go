package reactor

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func drainN(t *testing.T, ch Channel, n int, timeout time.Duration) []any {
	t.Helper()
	out := make([]any, 0, n)
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()
	for len(out) < n {
		msg, err := ch.Receive(ctx)
		if err != nil {
			t.Fatalf("timed out waiting for %d messages, got %d: %v (%v)", n, len(out), out, err)
		}
		out = append(out, msg)
	}
	return out
}

// S1 — lifecycle and destructor timing.
func TestScenarioLifecycleAndDestructorTiming(t *testing.T) {
	destroyed := false
	var mu sync.Mutex

	r := New(
		WithEmitter(func(_ Context, _, newState any) []any { return []any{newState} }),
		WithInitializer(func(Context) any { return map[string]int{"count": 1} }),
		WithLogger(discardLog()),
	)
	r.AddDestructors(map[string]func(){
		"D1": func() {
			mu.Lock()
			destroyed = true
			mu.Unlock()
		},
	})

	s1 := NewChannel(4)
	r.AddSubscribers(map[string]Channel{"s1": s1})
	r.Start()

	msgs := drainN(t, s1, 1, 2*time.Second)
	if len(msgs) != 1 {
		t.Fatalf("s1 got %d messages, want 1", len(msgs))
	}

	s2 := NewChannel(4)
	r.AddSubscribers(map[string]Channel{"s2": s2})
	r.Await()
	msgs2 := drainN(t, s2, 1, 2*time.Second)
	if len(msgs2) != 1 {
		t.Fatalf("s2 got %d messages, want 1", len(msgs2))
	}

	r.RemoveSubscribers("s1")
	r.Await()
	mu.Lock()
	d := destroyed
	mu.Unlock()
	if d {
		t.Fatalf("destroyed = true after removing only s1, want false")
	}

	r.RemoveSubscribers("s2")
	r.Await()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	d = destroyed
	mu.Unlock()
	if !d {
		t.Fatalf("destroyed = false after removing last subscriber, want true")
	}
}

// keysAdded returns the keys present in next but not in old, sorted. A nil
// old or next is treated as the empty map, so it also describes the
// catch-up emission computed against the pre-start "no old state" case.
func keysAdded(old, next any) []string {
	oldM, _ := old.(map[string]int)
	nextM, _ := next.(map[string]int)
	var added []string
	for k := range nextM {
		if _, ok := oldM[k]; !ok {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	return added
}

func mergeStates(state, change any) any {
	merged := map[string]int{}
	if s, ok := state.(map[string]int); ok {
		for k, v := range s {
			merged[k] = v
		}
	}
	for k, v := range change.(map[string]int) {
		merged[k] = v
	}
	return merged
}

// S2 — crash recovery re-emits full state. A reducer that panics while a
// shared "mode" flag is off models a transient downstream fault; the
// subscriber must see the reactor catch up to its post-recovery state on
// every reboot, and the publisher attached before the first crash must
// still be feeding the reactor afterward without being re-attached.
func TestScenarioCrashRecoveryReEmitsFullState(t *testing.T) {
	var mode atomic.Bool
	mode.Store(true)

	r := New(
		WithReducer(func(_ Context, state any, _ string, msg any) any {
			if !mode.Load() {
				panic("mode off")
			}
			return mergeStates(state, msg)
		}),
		WithEmitter(func(_ Context, old, next any) []any { return []any{keysAdded(old, next)} }),
		WithInitializer(func(Context) any { return map[string]int{"zero": 0} }),
		WithBackoff(FixedBackoff(time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond)),
		WithLogger(discardLog()),
	)

	p := NewChannel(4)
	s := NewChannel(4)
	r.AddPublishers(map[string]Channel{"p": p})
	r.AddSubscribers(map[string]Channel{"s": s})
	r.Start()

	// Start-transition catch-up: the fresh {zero:0} state against "no old
	// state" yields the added key "zero".
	if got := drainN(t, s, 1, 2*time.Second); fmt.Sprint(got[0]) != "[zero]" {
		t.Fatalf("catch-up emission = %v, want [zero]", got)
	}

	if err := p.Send(bgctx(), map[string]int{"one": 1}); err != nil {
		t.Fatalf("Send({one:1}): %v", err)
	}
	if got := drainN(t, s, 1, 2*time.Second); fmt.Sprint(got[0]) != "[one]" {
		t.Fatalf("emission after {one:1} = %v, want [one]", got)
	}

	mode.Store(false)
	if err := p.Send(bgctx(), map[string]int{"two": 1}); err != nil {
		t.Fatalf("Send({two:1}) #1: %v", err)
	}
	// The reducer panics, the supervisor reboots, and re-initialization
	// resets state to {zero:0} again, re-emitting its catch-up diff to the
	// still-attached subscriber.
	if got := drainN(t, s, 1, 2*time.Second); fmt.Sprint(got[0]) != "[zero]" {
		t.Fatalf("emission after first crash = %v, want [zero]", got)
	}

	// The publisher pump was never torn down by the reboot; sending again
	// without re-attaching "p" still reaches the reactor and crashes it a
	// second time, since mode is still off.
	if err := p.Send(bgctx(), map[string]int{"two": 1}); err != nil {
		t.Fatalf("Send({two:1}) #2: %v", err)
	}
	if got := drainN(t, s, 1, 2*time.Second); fmt.Sprint(got[0]) != "[zero]" {
		t.Fatalf("emission after second crash = %v, want [zero]", got)
	}

	mode.Store(true)
	if err := p.Send(bgctx(), map[string]int{"two": 1}); err != nil {
		t.Fatalf("Send({two:1}) #3: %v", err)
	}
	if got := drainN(t, s, 1, 2*time.Second); fmt.Sprint(got[0]) != "[two]" {
		t.Fatalf("emission after recovery = %v, want [two]", got)
	}

	if r.Restarts() != 2 {
		t.Errorf("Restarts() = %d, want 2", r.Restarts())
	}
}

// S3 — publisher removal closes the channel and stops further reductions.
func TestScenarioPublisherRemovalClosesChannel(t *testing.T) {
	var reduced int
	var mu sync.Mutex

	r := New(
		WithReducer(func(_ Context, state any, _ string, msg any) any {
			mu.Lock()
			reduced++
			mu.Unlock()
			return msg
		}),
		WithInitializer(func(Context) any { return 0 }),
		WithLogger(discardLog()),
	)
	p := NewChannel(4)
	r.AddPublishers(map[string]Channel{"p": p})
	r.Start()

	if err := p.Send(bgctx(), 1); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	// Await only covers actions already in the mailbox; wait until the pump
	// has forwarded the message and its reduction has run.
	pumped := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := reduced
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-pumped:
			t.Fatalf("message sent before removal was never reduced")
		case <-time.After(5 * time.Millisecond):
		}
	}
	r.Await()

	r.RemovePublishers("p")
	r.Await()

	if !p.IsClosed() {
		t.Fatalf("publisher channel not closed after removal")
	}

	mu.Lock()
	before := reduced
	mu.Unlock()

	// Further sends must not be possible; the pump has stopped reading.
	if err := p.Send(bgctx(), 2); err == nil {
		t.Fatalf("Send on removed/closed publisher channel succeeded, want error")
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	after := reduced
	mu.Unlock()
	if after != before {
		t.Fatalf("reduced count changed after removal: before=%d after=%d", before, after)
	}
}

// S4 — externally-closed subscriber auto-removes.
func TestScenarioExternallyClosedSubscriberAutoRemoves(t *testing.T) {
	r := New(
		WithInitializer(func(Context) any { return 0 }),
		WithLogger(discardLog()),
	)
	s := NewChannel(4)
	r.AddSubscribers(map[string]Channel{"s": s})
	r.Start()

	s.Close()

	deadline := time.After(2 * time.Second)
	for {
		ids := r.GetSubscriberIdents()
		if len(ids) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("subscriber %v still attached after external close", ids)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// S5 — backoff exhaustion implodes.
func TestScenarioBackoffExhaustionImplodes(t *testing.T) {
	destroyedIDs := map[string]bool{}
	var mu sync.Mutex

	r := New(
		WithInitializer(func(Context) any { panic("always fails") }),
		WithBackoff(FixedBackoff(time.Millisecond, time.Millisecond, time.Millisecond)),
		WithLogger(discardLog()),
	)
	for _, id := range []string{"A", "B"} {
		id := id
		r.AddDestructors(map[string]func(){id: func() {
			mu.Lock()
			destroyedIDs[id] = true
			mu.Unlock()
		}})
	}
	r.Start()

	deadline := time.After(2 * time.Second)
	for r.Status() != StatusImploded {
		select {
		case <-deadline:
			t.Fatalf("reactor did not implode, status=%v", r.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !destroyedIDs["A"] || !destroyedIDs["B"] {
		t.Fatalf("destructors not all fired: %v", destroyedIDs)
	}
}

// S6 — ordering under concurrent updates.
func TestScenarioOrderingUnderConcurrentUpdates(t *testing.T) {
	r := New(
		WithInitializer(func(Context) any { return 0 }),
		WithLogger(discardLog()),
	)
	r.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Update(func(s any) any { return s.(int) + 1 })
			}
		}()
	}
	wg.Wait()
	r.Await()

	if got := r.GetState().(int); got != 10000 {
		t.Fatalf("GetState() = %d, want 10000", got)
	}
}

// Property: a subscriber added after start sees the catch-up emission.
func TestCatchUpEmissionForLateSubscriber(t *testing.T) {
	r := New(
		WithEmitter(func(_ Context, _, newState any) []any { return []any{newState} }),
		WithInitializer(func(Context) any { return "hello" }),
		WithLogger(discardLog()),
	)
	r.Start()

	s := NewChannel(4)
	r.AddSubscribers(map[string]Channel{"s": s})
	msgs := drainN(t, s, 1, 2*time.Second)
	if len(msgs) != 1 || msgs[0] != "hello" {
		t.Fatalf("catch-up emission = %v, want [hello]", msgs)
	}
}

// Property: reboot resets state to a fresh initializer() output.
func TestRebootResetsState(t *testing.T) {
	r := New(
		WithInitializer(func(Context) any { return "fresh" }),
		WithBackoff(FixedBackoff(time.Millisecond)),
		WithLogger(discardLog()),
	)
	r.Start()
	r.Update(func(any) any { return "mutated" })
	r.Await()
	if r.GetState() != "mutated" {
		t.Fatalf("state before reboot = %v, want mutated", r.GetState())
	}

	r.Reboot()

	deadline := time.After(2 * time.Second)
	for r.GetState() != "fresh" {
		select {
		case <-deadline:
			t.Fatalf("state after reboot = %v, want fresh", r.GetState())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if r.Restarts() != 1 {
		t.Errorf("Restarts() = %d, want 1", r.Restarts())
	}
}

func TestWithBackoffNilKeepsDefault(t *testing.T) {
	r := New(WithBackoff(nil), WithLogger(discardLog()))
	if r.getRecord().backoff == nil {
		t.Fatalf("backoff is nil after WithBackoff(nil), want default preserved")
	}
}

func TestGetPublisherAndSubscriberIdentsSorted(t *testing.T) {
	r := New(WithLogger(discardLog()))
	r.AddPublishers(map[string]Channel{
		"zeta":  NewChannel(1),
		"alpha": NewChannel(1),
	})
	r.AddSubscribers(map[string]Channel{
		"zulu":  NewChannel(1),
		"bravo": NewChannel(1),
	})
	r.Start()
	r.Await()
	ids := r.GetPublisherIdents()
	if !sort.StringsAreSorted(ids) {
		t.Errorf("GetPublisherIdents() = %v, not sorted", ids)
	}
	if fmt.Sprint(ids) != "[alpha zeta]" {
		t.Errorf("GetPublisherIdents() = %v, want [alpha zeta]", ids)
	}
	subIDs := r.GetSubscriberIdents()
	if !sort.StringsAreSorted(subIDs) {
		t.Errorf("GetSubscriberIdents() = %v, not sorted", subIDs)
	}
	if fmt.Sprint(subIDs) != "[bravo zulu]" {
		t.Errorf("GetSubscriberIdents() = %v, want [bravo zulu]", subIDs)
	}
}
