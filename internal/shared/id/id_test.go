package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateWithPrefix("sess")

	if !strings.HasPrefix(id, "sess_") {
		t.Errorf("ID should start with 'sess_', got: %s", id)
	}

	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		t.Fatalf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
	}
	if !IsValid(parts[1]) {
		t.Errorf("ULID part should be valid: %s", parts[1])
	}
}

func TestSessionIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	sid := NewSessionID()

	ts, err := sid.Time()
	if err != nil {
		t.Fatalf("Time() failed: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("timestamp %v outside expected window", ts)
	}

	if _, err := SessionID("sess_garbage").Time(); err == nil {
		t.Error("expected error for malformed id")
	}
}

func TestIsValid(t *testing.T) {
	if IsValid("not-a-ulid") {
		t.Error("IsValid should reject garbage")
	}
	if !IsValid(NewGenerator().Generate().String()) {
		t.Error("IsValid should accept generated ULIDs")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const workers = 8
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[SessionID]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				sid := NewSessionID()
				mu.Lock()
				seen[sid] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}
