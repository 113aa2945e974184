package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	mlerrors "github.com/YuminosukeSato/mlcore/pkg/errors"
)

// TestLoggerInterface tests the TestLogger implementation
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorConvergence)
	testLogger.Error("error message", fmt.Errorf("boom"), ErrorCodeKey, ErrorInvalidInput)

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("number", 42.0) { // JSON numbers decode as float64
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "boom") {
		t.Error("Expected leading error to be stored under the error key")
	}
}

// TestLoggerWith tests the With method for context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "KMeans",
		EstimatorIDKey, "km-001",
	)
	contextLogger.Info("fit completed", InertiaKey, 1.5)

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry[ModelNameKey] != "KMeans" || entry[EstimatorIDKey] != "km-001" || entry[InertiaKey] != 1.5 {
		t.Errorf("context fields missing: %v", entry)
	}
}

// TestLoggerEnabled tests level filtering
func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) || !testLogger.Enabled(ctx, LevelError) {
		t.Error("Logger should be enabled for Info and Error")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")
	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsMessage("this should appear") {
		t.Error("Info message should appear when level is Info")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if LevelWarn.String() != "WARN" {
		t.Errorf("LevelWarn.String() = %s", LevelWarn.String())
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("hidden")
	logger.With(ModelNameKey, "DecisionTreeClassifier").Info("fit completed", DepthKey, 3)
	logger.Error("fit failed", fmt.Errorf("bad input"), OperationKey, OperationFit)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &info); err != nil {
		t.Fatal(err)
	}
	if info["message"] != "fit completed" || info[ModelNameKey] != "DecisionTreeClassifier" || info[DepthKey] != 3.0 {
		t.Errorf("unexpected info record: %v", info)
	}

	var errRec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &errRec); err != nil {
		t.Fatal(err)
	}
	if errRec["error"] != "bad input" || errRec[OperationKey] != OperationFit {
		t.Errorf("unexpected error record: %v", errRec)
	}

	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled")
	}
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelWarn)

	p.GetLoggerWithName("cluster.kmeans").Info("dropped")
	p.GetLoggerWithName("cluster.kmeans").Warn("kept")
	p.SetLevel(LevelDebug)
	p.GetLogger().Debug("now visible")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"ml.component":"cluster.kmeans"`) {
		t.Errorf("component name missing: %s", out)
	}
	if !strings.Contains(out, "now visible") {
		t.Error("SetLevel should apply to loggers created afterwards")
	}
}

func TestSetProvider(t *testing.T) {
	prev := Provider()
	defer SetProvider(prev)

	provider, captured := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)

	GetLoggerWithName("tree").Info("grown", LeavesKey, 4)
	if !captured.ContainsField(ComponentKey, "tree") {
		t.Error("named logger should carry the component")
	}
	if !captured.ContainsField(LeavesKey, 4.0) {
		t.Error("field missing")
	}
}

func TestWarningsLogger(t *testing.T) {
	prev := Provider()
	defer SetProvider(prev)

	provider, captured := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)

	mlerrors.Warn(mlerrors.NewConvergenceWarning("KMeans", 3, ""))

	entries, err := captured.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 warning record, got %d: %v", len(entries), entries)
	}
	if entries[0][ComponentKey] != "warnings" || entries[0]["level"] != "WARN" {
		t.Errorf("unexpected warning record: %v", entries[0])
	}
	if !strings.Contains(entries[0]["message"].(string), "KMeans failed to converge after 3 iterations") {
		t.Errorf("unexpected message: %v", entries[0]["message"])
	}
}

func TestWarningHandlerOverridesLogger(t *testing.T) {
	prev := Provider()
	defer SetProvider(prev)
	provider, captured := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)

	var got []error
	mlerrors.SetWarningHandler(func(w error) { got = append(got, w) })
	defer mlerrors.SetWarningHandler(nil)

	mlerrors.Warn(mlerrors.NewConvergenceWarning("KMeans", 3, ""))

	if len(got) != 1 {
		t.Fatalf("expected handler to receive 1 warning, got %d", len(got))
	}
	if captured.ContainsMessage("failed to converge") {
		t.Error("a custom handler must replace the logger, not duplicate it")
	}
}

func TestErrFmtHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))

	err := errors.New("fit failed")
	logger.Error("training failed", ErrAttr(err))

	var rec map[string]interface{}
	if jerr := json.Unmarshal(buf.Bytes(), &rec); jerr != nil {
		t.Fatal(jerr)
	}
	if _, ok := rec[StacktraceAttrKey]; !ok {
		t.Errorf("expected %s attribute, got %v", StacktraceAttrKey, rec)
	}
}

func BenchmarkZerologLogger(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf)).With(ModelNameKey, "Bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		logger.Info("benchmark message", IterationKey, i, SamplesKey, 1000)
	}
}
