package cohere

import (
	"errors"
	"strings"
	"testing"
)

func TestVerifyAll_FirstRejectionWins(t *testing.T) {
	pass := func(Snapshot[int]) error { return nil }
	fail1 := func(Snapshot[int]) error { return errors.New("first") }
	fail2 := func(Snapshot[int]) error { return errors.New("second") }

	v := VerifyAll(pass, nil, fail1, fail2)
	err := v(Snapshot[int]{})
	if err == nil || err.Error() != "first" {
		t.Errorf("expected first rejection, got %v", err)
	}

	if err := VerifyAll(pass, pass)(Snapshot[int]{}); err != nil {
		t.Errorf("expected acceptance, got %v", err)
	}
}

func TestStructVerifier_ChecksTags(t *testing.T) {
	type bounds struct {
		Count int `validate:"min=0,max=10"`
	}
	v := StructVerifier(func(s Snapshot[int]) bounds {
		return bounds{Count: s["count"]}
	})

	if err := v(Snapshot[int]{"count": 5}); err != nil {
		t.Errorf("expected acceptance, got %v", err)
	}
	if err := v(Snapshot[int]{"count": 50}); err == nil {
		t.Error("expected rejection for out-of-range value")
	}
}

func TestExprVerifier_EvaluatesConstraints(t *testing.T) {
	v, err := ExprVerifier[any](
		"value >= 0",
		"unit in options",
	)
	if err != nil {
		t.Fatalf("ExprVerifier failed: %v", err)
	}

	ok := Snapshot[any]{
		"value":   float64(5),
		"unit":    "m",
		"options": []string{"m", "km"},
	}
	if err := v(ok); err != nil {
		t.Errorf("expected acceptance, got %v", err)
	}

	bad := ok.Clone()
	bad["value"] = float64(-1)
	err = v(bad)
	if err == nil {
		t.Fatal("expected rejection for negative value")
	}
	if !strings.Contains(err.Error(), "value >= 0") {
		t.Errorf("rejection should name the failing constraint, got %v", err)
	}
}

func TestExprVerifier_CompileErrorUpFront(t *testing.T) {
	if _, err := ExprVerifier[any]("value >="); err == nil {
		t.Error("expected compile error for malformed expression")
	}
	if _, err := ExprVerifier[any](""); err == nil {
		t.Error("expected error for empty expression")
	}
}

func TestExprVerifier_InsideController(t *testing.T) {
	loop := newTestLoop(t)

	verifier, err := ExprVerifier[int]("a + b == sum", "a >= 0")
	if err != nil {
		t.Fatalf("ExprVerifier failed: %v", err)
	}
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), verifier))
	defer ctrl.Dispose()

	loop.Do(func() { err = ctrl.SubmitValue("a", 10) })
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	loop.Do(func() { err = ctrl.SubmitValue("a", -1) })
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
}
