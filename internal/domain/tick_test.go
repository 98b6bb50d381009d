package domain

import "testing"

func TestParseTick(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Tick
		wantErr bool
	}{
		{
			name:  "valid frame",
			input: "EURUSD+:|:1.08921;1.08935",
			want:  Tick{Symbol: "EURUSD+", Bid: 1.08921, Ask: 1.08935},
		},
		{
			name:  "index symbol",
			input: "US.100+:|:17950.5;17952.0",
			want:  Tick{Symbol: "US.100+", Bid: 17950.5, Ask: 17952.0},
		},
		{
			name:    "missing delimiter",
			input:   "EURUSD+ 1.08921;1.08935",
			wantErr: true,
		},
		{
			name:    "missing ask",
			input:   "EURUSD+:|:1.08921",
			wantErr: true,
		},
		{
			name:    "non-numeric quote",
			input:   "EURUSD+:|:abc;1.08935",
			wantErr: true,
		},
		{
			name:    "empty symbol",
			input:   ":|:1.0;1.1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTick(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTimeframeByName(t *testing.T) {
	tf, ok := TimeframeByName("M5")
	if !ok {
		t.Fatal("M5 not found")
	}
	if tf.Period.Minutes() != 5 {
		t.Errorf("M5 period = %v", tf.Period)
	}
	if !tf.Intraday() {
		t.Error("M5 should be intraday")
	}

	d1, ok := TimeframeByName("D1")
	if !ok {
		t.Fatal("D1 not found")
	}
	if d1.Intraday() {
		t.Error("D1 should not be intraday")
	}

	if _, ok := TimeframeByName("M7"); ok {
		t.Error("M7 should not resolve")
	}
}
