package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestAppendAndSnapshot(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	userID := uuid.New()

	store.Append(userID, "user", "hello")
	store.Append(userID, "assistant", "hi there")

	turns := store.Snapshot(userID)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "hello" {
		t.Errorf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Content != "hi there" {
		t.Errorf("unexpected second turn: %+v", turns[1])
	}
}

func TestAppend_EvictsOldestBeyondBound(t *testing.T) {
	t.Parallel()

	const maxTurns = 3 // bound = 6
	store := NewStore(maxTurns)
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		store.Append(userID, "user", fmt.Sprintf("msg-%d", i))
	}

	turns := store.Snapshot(userID)
	if len(turns) != 2*maxTurns {
		t.Fatalf("got %d turns, want %d", len(turns), 2*maxTurns)
	}
	// the most recent 6 turns, in arrival order
	for i, turn := range turns {
		want := fmt.Sprintf("msg-%d", i+4)
		if turn.Content != want {
			t.Errorf("turn %d = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestSnapshot_UnknownUser(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	if turns := store.Snapshot(uuid.New()); len(turns) != 0 {
		t.Errorf("got %d turns for unknown user, want 0", len(turns))
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	userID := uuid.New()
	store.Append(userID, "user", "original")

	turns := store.Snapshot(userID)
	turns[0].Content = "mutated"

	if got := store.Snapshot(userID)[0].Content; got != "original" {
		t.Errorf("snapshot mutation leaked into store: %q", got)
	}
}

func TestAppendedTurns_MonotonicPastBound(t *testing.T) {
	t.Parallel()

	const maxTurns = 3 // bound = 6
	store := NewStore(maxTurns)
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		store.Append(userID, "user", fmt.Sprintf("msg-%d", i))
	}

	if got := store.TurnCount(userID); got != 2*maxTurns {
		t.Errorf("TurnCount = %d, want pinned at %d", got, 2*maxTurns)
	}
	if got := store.AppendedTurns(userID); got != 10 {
		t.Errorf("AppendedTurns = %d, want 10", got)
	}

	if got := store.AppendedTurns(uuid.New()); got != 0 {
		t.Errorf("AppendedTurns for unknown user = %d, want 0", got)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	userID := uuid.New()
	store.Append(userID, "user", "hello")

	store.Clear(userID)
	if got := store.TurnCount(userID); got != 0 {
		t.Errorf("TurnCount after Clear = %d, want 0", got)
	}

	// idempotent
	store.Clear(userID)
}

func TestAppend_ConcurrentSameUser(t *testing.T) {
	t.Parallel()

	const maxTurns = 100
	store := NewStore(maxTurns)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 2*maxTurns; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Append(userID, "user", fmt.Sprintf("msg-%d", n))
		}(i)
	}
	wg.Wait()

	turns := store.Snapshot(userID)
	if len(turns) != 2*maxTurns {
		t.Fatalf("got %d turns, want %d (no turn may be lost within the bound)", len(turns), 2*maxTurns)
	}
	seen := make(map[string]bool, len(turns))
	for _, turn := range turns {
		if seen[turn.Content] {
			t.Errorf("duplicate turn %q", turn.Content)
		}
		seen[turn.Content] = true
	}
}

func TestAppend_ConcurrentDistinctUsers(t *testing.T) {
	t.Parallel()

	store := NewStore(5)
	var wg sync.WaitGroup
	users := make([]uuid.UUID, 8)
	for i := range users {
		users[i] = uuid.New()
	}

	for _, userID := range users {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				store.Append(id, "user", "x")
			}
		}(userID)
	}
	wg.Wait()

	for _, userID := range users {
		if got := store.TurnCount(userID); got != 10 {
			t.Errorf("user %s has %d turns, want 10", userID, got)
		}
	}
}
