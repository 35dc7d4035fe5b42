package agent

import (
	"sync"
	"testing"
)

func TestSessionLocksSerializeSameKey(t *testing.T) {
	t.Parallel()
	locks := newSessionLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("s1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock table to be empty, got %d", locks.size())
	}
}

func TestSessionLocksIndependentKeys(t *testing.T) {
	t.Parallel()
	locks := newSessionLocks()

	unlockA := locks.lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()
	<-done
	if locks.size() != 1 {
		t.Fatalf("expected only key a to remain, got %d", locks.size())
	}
	unlockA()
}
