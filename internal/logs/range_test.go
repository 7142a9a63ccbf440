package logs

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeRemainder(t *testing.T) {
	got, err := SplitRange(0, 250_000, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 0, To: 99_999},
		{From: 100_000, To: 199_999},
		{From: 200_000, To: 250_000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeUnbounded(t *testing.T) {
	got, err := SplitRange(1, 20_000_000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []BlockRange{{From: 1, To: 20_000_000}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestHalves(t *testing.T) {
	left, right := BlockRange{From: 0, To: 35}.Halves()
	if left != (BlockRange{From: 0, To: 17}) || right != (BlockRange{From: 18, To: 35}) {
		t.Fatalf("halves mismatch: %v %v", left, right)
	}

	left, right = BlockRange{From: 7, To: 8}.Halves()
	if left != (BlockRange{From: 7, To: 7}) || right != (BlockRange{From: 8, To: 8}) {
		t.Fatalf("halves mismatch: %v %v", left, right)
	}
}
