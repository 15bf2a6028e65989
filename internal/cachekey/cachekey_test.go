package cachekey

import "testing"

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	a := Build("option_chain", "NIFTY", "30-Dec-2025")
	b := Build("option_chain", "NIFTY", "30-Dec-2025")
	if a != b {
		t.Errorf("same inputs produced different keys: %q vs %q", a, b)
	}

	c := Build("option_chain", "NIFTY", "27-Jan-2026")
	if a == c {
		t.Errorf("different expiry produced identical key %q", a)
	}
}

func TestBuild_NullSentinel(t *testing.T) {
	t.Parallel()

	got := Build("single_analysis", "nse", "NIFTY", "30-Dec-2025", "", "", "")
	want := "single_analysis:nse:NIFTY:30-Dec-2025:null:null:null"
	if got != want {
		t.Errorf("key = %q, want %q", got, want)
	}

	// A supplied optional parameter must not collide with an omitted one.
	other := Build("single_analysis", "nse", "NIFTY", "30-Dec-2025", "OPTIDX", "", "")
	if got == other {
		t.Error("keys with and without instrument collide")
	}
}

func TestBuild_NoParams(t *testing.T) {
	t.Parallel()
	if got := Build("batch_analysis"); got != "batch_analysis" {
		t.Errorf("key = %q, want %q", got, "batch_analysis")
	}
}

func TestResourceBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"securities", Securities("nse"), "securities:nse"},
		{"contract info", ContractInfo("nse", "RELIANCE"), "contract_info:nse:RELIANCE"},
		{"option chain", OptionChain("nse", "NIFTY", "30-Dec-2025"), "option_chain:nse:NIFTY:30-Dec-2025"},
		{"batch", BatchAnalysis("mcx"), "batch_analysis:mcx"},
		{"futures", FuturesData("mcx", "CRUDEOIL"), "futures_data:mcx:CRUDEOIL"},
		{"historical", DerivativesHistorical("nse", "NIFTY", "01-Jan-2026", "31-Jan-2026"),
			"derivatives_historical:nse:NIFTY:01-Jan-2026:31-Jan-2026"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: key = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
