package splice

import (
	"sync"
	"testing"
)

func TestSequencerStartsAtOne(t *testing.T) {
	seq := NewSequencer()
	if got := seq.Last(); got != 0 {
		t.Fatalf("Last before allocation = %d, want 0", got)
	}
	for want := EventID(1); want <= 3; want++ {
		if got := seq.Next(); got != want {
			t.Fatalf("Next = %d, want %d", got, want)
		}
	}
	if got := seq.Last(); got != 3 {
		t.Fatalf("Last = %d, want 3", got)
	}
}

func TestSequencerConcurrentAllocationsAreUnique(t *testing.T) {
	const workers, perWorker = 8, 250
	seq := NewSequencer()

	results := make(chan EventID, workers*perWorker)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var prev EventID
			for range perWorker {
				id := seq.Next()
				if id <= prev {
					t.Errorf("id %d not greater than previous %d", id, prev)
				}
				prev = id
				results <- id
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[EventID]struct{}, workers*perWorker)
	for id := range results {
		if id == 0 {
			t.Fatal("allocated reserved id 0")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("allocated %d ids, want %d", len(seen), workers*perWorker)
	}
	if got := seq.Last(); got != EventID(workers*perWorker) {
		t.Fatalf("Last = %d, want %d", got, workers*perWorker)
	}
}
