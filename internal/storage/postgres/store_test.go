package postgres

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lib/pq"

	"github.com/factumhq/factum/internal/storage"
)

// These tests cover the pure parts of the backend; integration against a
// live PostgreSQL server is exercised by the engine tests via the fake store
// and, in deployments, by pointing FACTUM_STORAGE_DSN at a scratch database.

func TestClassifyConnectionErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want storage.Code
	}{
		{"connection failure", &pq.Error{Code: "08006"}, storage.CodeUnavailable},
		{"too many connections", &pq.Error{Code: "53300"}, storage.CodeUnavailable},
		{"query canceled", &pq.Error{Code: "57014"}, storage.CodeDeadlineExceeded},
		{"constraint violation", &pq.Error{Code: "23505"}, storage.CodeInternal},
		{"context deadline", context.DeadlineExceeded, storage.CodeDeadlineExceeded},
		{"plain error", errors.New("boom"), storage.CodeInternal},
	}
	for _, tc := range cases {
		if got := storage.CodeOf(classify(tc.err)); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0.1, -2.5, 0, 42}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("length: got %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("[%d]: got %v, want %v", i, got[i], v[i])
		}
	}

	if decodeVector(nil) != nil {
		t.Error("decodeVector(nil) should be nil")
	}
	if decodeVector([]byte{1, 2, 3}) != nil {
		t.Error("decodeVector of a truncated buffer should be nil")
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("identical vectors: distance %v, want 0", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors: distance %v, want 1", d)
	}
	if d := cosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Errorf("zero vector: distance %v, want 1", d)
	}
}
