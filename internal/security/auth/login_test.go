package auth

import "testing"

func TestResolve(t *testing.T) {
	r := NewResolver("")
	cases := []struct {
		raw      string
		want     Resolution
		prefixed bool
	}{
		{"admin", Resolution{BaseLogin: "admin", IsSuperAdminCandidate: true}, false},
		{"  ADMIN ", Resolution{BaseLogin: "admin", IsSuperAdminCandidate: true}, false},
		{"lv_john", Resolution{TenantPrefix: "lv", BaseLogin: "john"}, true},
		{"LV_John", Resolution{TenantPrefix: "lv", BaseLogin: "John"}, true},
		{"lv_admin", Resolution{TenantPrefix: "lv", BaseLogin: "admin"}, true},
		{"john", Resolution{BaseLogin: "john"}, false},
		{"lv_", Resolution{BaseLogin: "lv_"}, false},
		{"_john", Resolution{BaseLogin: "_john"}, false},
		{"lv_john_smith", Resolution{BaseLogin: "lv_john_smith", Ambiguous: true}, false},
		{"", Resolution{}, false},
	}
	for _, tc := range cases {
		got := r.Resolve(tc.raw)
		if got != tc.want {
			t.Errorf("Resolve(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
		if got.Prefixed() != tc.prefixed {
			t.Errorf("Resolve(%q).Prefixed() = %v", tc.raw, got.Prefixed())
		}
	}
}

func TestResolveCustomReservedName(t *testing.T) {
	r := NewResolver("Root")
	if !r.Resolve("root").IsSuperAdminCandidate {
		t.Fatalf("expected root to be the reserved login")
	}
	if r.Resolve("admin").IsSuperAdminCandidate {
		t.Fatalf("admin should not be reserved when the reserved name is root")
	}
	if r.Reserved() != "root" {
		t.Fatalf("expected lowercased reserved name, got %q", r.Reserved())
	}
}
