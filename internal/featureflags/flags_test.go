package featureflags

import "testing"

func TestEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"YES", true},
		{" on ", true},
		{"1", true},
		{"0", false},
		{"", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		t.Setenv("FLAG_SEED_DEMO_TENANTS", tt.value)
		if got := Enabled(SeedDemoTenants); got != tt.want {
			t.Fatalf("value %q: expected %v, got %v", tt.value, tt.want, got)
		}
	}
}
