package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
)

var errFetch = errors.New("fetch failed")

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.State() != StateClosed {
		t.Errorf("expected closed breaker, got %s", cb.State())
	}
	if cb.cfg.MaxFailures != 1 {
		t.Errorf("expected MaxFailures 1 when unset, got %d", cb.cfg.MaxFailures)
	}
	if cb.cfg.IsSuccessful == nil {
		t.Error("expected default IsSuccessful")
	}
}

func TestBudget_SuccessesDoNotRefund(t *testing.T) {
	cb := New(BudgetConfig(3))

	for _, err := range []error{errFetch, nil, errFetch, nil, nil} {
		if allowErr := cb.Allow(); allowErr != nil {
			t.Fatalf("unexpected rejection: %v", allowErr)
		}
		cb.Record(err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after 2 failures, got %s", cb.State())
	}

	cb.Execute(func() error { return errFetch })

	if cb.State() != StateOpen {
		t.Errorf("expected open after the third failure, got %s", cb.State())
	}
	if cb.Failures() != 3 || cb.Successes() != 3 {
		t.Errorf("expected 3 failures and 3 successes, got %d and %d", cb.Failures(), cb.Successes())
	}
}

func TestBudget_StaysOpen(t *testing.T) {
	cb := New(BudgetConfig(1))
	cb.Execute(func() error { return errFetch })

	called := false
	for i := 0; i < 4; i++ {
		err := cb.Execute(func() error {
			called = true
			return nil
		})
		if !errors.Is(err, ErrOpenState) {
			t.Errorf("attempt %d: expected ErrOpenState, got %v", i, err)
		}
	}
	if called {
		t.Error("expected no call to run while open")
	}
	if cb.Rejected() != 4 {
		t.Errorf("expected 4 rejections, got %d", cb.Rejected())
	}
}

func TestExecute_ReturnsCallError(t *testing.T) {
	cb := New(BudgetConfig(5))

	if err := cb.Execute(func() error { return errFetch }); err != errFetch {
		t.Errorf("expected %v, got %v", errFetch, err)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestOnStateChange(t *testing.T) {
	var transitions []string
	cfg := BudgetConfig(2)
	cfg.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	cb := New(cfg)

	failN := func(n int) {
		for i := 0; i < n; i++ {
			cb.Record(errFetch)
		}
	}
	failN(4)
	cb.Reset()
	cb.Reset()

	want := []string{"closed>open", "open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestReset(t *testing.T) {
	cb := New(BudgetConfig(1))
	cb.Execute(func() error { return errFetch })
	cb.Allow()

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.State())
	}
	if cb.Failures() != 0 || cb.Rejected() != 0 || cb.Successes() != 0 {
		t.Error("expected counters cleared after reset")
	}
}

func TestCustomIsSuccessful(t *testing.T) {
	notFound := errors.New("not found")
	cfg := BudgetConfig(1)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, notFound)
	}
	cb := New(cfg)

	cb.Execute(func() error { return notFound })

	if cb.State() != StateClosed {
		t.Errorf("expected ignored error to keep the breaker closed, got %s", cb.State())
	}
}

func TestConcurrentRecord(t *testing.T) {
	cb := New(BudgetConfig(50))
	var opened int
	var mu sync.Mutex
	cb.cfg.OnStateChange = func(from, to State) {
		mu.Lock()
		opened++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Record(errFetch)
		}()
	}
	wg.Wait()

	if cb.Failures() != 100 {
		t.Errorf("expected 100 failures, got %d", cb.Failures())
	}
	if opened != 1 {
		t.Errorf("expected a single transition, got %d", opened)
	}
}

func TestState_String(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" {
		t.Error("unexpected state names")
	}
	if State(9).String() != "state(9)" {
		t.Errorf("unexpected unknown state name %q", State(9).String())
	}
}
