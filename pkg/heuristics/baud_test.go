package heuristics

import "testing"

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEstimateBaud(t *testing.T) {
	tests := []struct {
		name   string
		edges  []float64
		want   int
		wantOK bool
	}{
		{name: "115200", edges: []float64{8.68, 8.68, 8.68}, want: 115200, wantOK: true},
		{name: "57600", edges: repeat(17.36, 5), want: 57600, wantOK: true},
		{name: "9600", edges: repeat(104.17, 8), want: 9600, wantOK: true},
		{name: "empty", edges: nil, wantOK: false},
		{name: "negative", edges: []float64{-1}, wantOK: false},
		{name: "zero median", edges: []float64{0, 0, 5}, wantOK: false},
		// 1e6/3000 = 333 baud, far from every standard rate.
		{name: "too slow", edges: repeat(3000, 3), wantOK: false},
		// 1e6/2 = 500000 baud, more than 40% away from 115200.
		{name: "too fast", edges: repeat(2, 3), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateBaud(tt.edges)
			if ok != tt.wantOK {
				t.Fatalf("EstimateBaud(%v) ok = %v, want %v", tt.edges, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("EstimateBaud(%v) = %d, want %d", tt.edges, got, tt.want)
			}
		})
	}
}

func TestEstimateBaudUpperMiddleMedian(t *testing.T) {
	// Sorted: [8.68, 17.36]. The upper-middle element (17.36) is the bit
	// period, so the estimate is 57600 rather than a value between the two.
	got, ok := EstimateBaud([]float64{17.36, 8.68})
	if !ok || got != 57600 {
		t.Fatalf("EstimateBaud = %d, %v; want 57600, true", got, ok)
	}
}

func TestEstimateBaudDoesNotMutateInput(t *testing.T) {
	edges := []float64{30, 10, 20}
	EstimateBaud(edges)
	if edges[0] != 30 || edges[1] != 10 || edges[2] != 20 {
		t.Fatalf("input reordered: %v", edges)
	}
}
