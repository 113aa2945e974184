package model

import (
	"bytes"
	"testing"
)

func TestBaseEstimator_State(t *testing.T) {
	var e BaseEstimator

	if e.IsFitted() {
		t.Fatal("zero value should not be fitted")
	}
	e.SetFitted()
	if !e.IsFitted() {
		t.Fatal("SetFitted should mark the estimator as fitted")
	}
	e.Reset()
	if e.IsFitted() {
		t.Fatal("Reset should clear the fitted state")
	}
}

func TestBaseEstimator_ID(t *testing.T) {
	var a, b BaseEstimator

	if a.ID() == "" {
		t.Fatal("ID should not be empty")
	}
	if a.ID() != a.ID() {
		t.Error("ID should be stable across calls")
	}
	if a.ID() == b.ID() {
		t.Error("distinct estimators should have distinct IDs")
	}
}

type snapshot struct {
	Centers [][]float64
	Labels  []int
}

func TestSaveLoadRoundTrip(t *testing.T) {
	in := snapshot{Centers: [][]float64{{0, 0.5}, {10, 10.5}}, Labels: []int{0, 0, 1, 1}}

	var buf bytes.Buffer
	if err := SaveModelToWriter(&in, &buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	var out snapshot
	if err := LoadModelFromReader(&out, &buf); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Centers) != 2 || out.Centers[1][1] != 10.5 || len(out.Labels) != 4 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestLoadModel_MissingFile(t *testing.T) {
	var out snapshot
	if err := LoadModel(&out, "does-not-exist.gob"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
