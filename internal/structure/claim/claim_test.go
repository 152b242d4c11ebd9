package claim

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoCollapsesConcurrentCalls(t *testing.T) {
	c := New(nil, time.Second)

	var executions atomic.Int64
	fn := func() (string, error) {
		executions.Add(1)
		time.Sleep(100 * time.Millisecond)
		return "artifact", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text, _, err := c.Do("1CRN", fn)
			if err != nil {
				t.Errorf("do failed: %v", err)
			}
			results[i] = text
		}(i)
	}
	wg.Wait()

	if n := executions.Load(); n != 1 {
		t.Errorf("expected 1 execution for overlapping calls, got %d", n)
	}
	for i, r := range results {
		if r != "artifact" {
			t.Errorf("caller %d got %q", i, r)
		}
	}
}

func TestDoSeparateKeysRunIndependently(t *testing.T) {
	c := New(nil, time.Second)

	var executions atomic.Int64
	fn := func() (string, error) {
		executions.Add(1)
		return "x", nil
	}

	if _, _, err := c.Do("1AAA", fn); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if _, _, err := c.Do("1BBB", fn); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if n := executions.Load(); n != 2 {
		t.Errorf("expected 2 executions for distinct ids, got %d", n)
	}
}

func TestTryAcquireWithoutRedis(t *testing.T) {
	c := New(nil, time.Second)
	release, acquired := c.TryAcquire(t.Context(), "1CRN")
	if !acquired {
		t.Error("claims without redis should always win")
	}
	release()
}
