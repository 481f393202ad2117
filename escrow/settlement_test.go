package escrow

import "testing"

func TestSettle(t *testing.T) {
	tests := []struct {
		name       string
		totalCents int64
		feePercent float64
		wantFee    int64
		wantPayout int64
	}{
		{"ten percent of 100", 10000, 10, 1000, 9000},
		{"ten percent of 20", 2000, 10, 200, 1800},
		{"rounds half up", 105, 10, 11, 94},
		{"rounds down below half", 104, 10, 10, 94},
		{"zero fee", 5000, 0, 0, 5000},
		{"zero amount", 0, 10, 0, 0},
		{"fifteen percent", 9999, 15, 1500, 8499},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle(tt.totalCents, tt.feePercent)
			if s.PlatformFeeCents != tt.wantFee {
				t.Errorf("platform fee: got %d, want %d", s.PlatformFeeCents, tt.wantFee)
			}
			if s.CarrierPayoutCents != tt.wantPayout {
				t.Errorf("carrier payout: got %d, want %d", s.CarrierPayoutCents, tt.wantPayout)
			}
			if s.PlatformFeeCents+s.CarrierPayoutCents != tt.totalCents {
				t.Errorf("fee %d + payout %d does not sum to total %d", s.PlatformFeeCents, s.CarrierPayoutCents, tt.totalCents)
			}
		})
	}
}

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		dollars float64
		want    int64
	}{
		{20.00, 2000},
		{19.99, 1999},
		{0.01, 1},
		{0, 0},
		{2.5, 250},
	}
	for _, tt := range tests {
		if got := DollarsToCents(tt.dollars); got != tt.want {
			t.Errorf("DollarsToCents(%v): got %d, want %d", tt.dollars, got, tt.want)
		}
	}
}
