package security

import (
	"testing"

	"github.com/amberops/workspace/internal/domain"
)

func TestCanAccessDataCategory(t *testing.T) {
	d := NewDataAccessService(nil)
	cases := []struct {
		role     domain.Role
		category string
		want     bool
	}{
		{domain.RoleSuperAdmin, "anything_at_all", true},
		{domain.RoleAdmin, string(CategorySMScheduleAdjacent), true},
		{domain.RoleAdmin, "future_category", true},
		{domain.RoleDealer, string(CategoryDealerScheduleCurrent), true},
		{domain.RoleDealer, string(CategorySMScheduleCurrent), false},
		{domain.RoleDealer, string(CategoryDealerScheduleAdjacent), false},
		{domain.RoleSM, string(CategorySMScheduleCurrent), true},
		{domain.RoleSM, string(CategoryDealerScheduleCurrent), false},
		{domain.RoleOperation, string(CategoryDealerScheduleCurrent), true},
		{domain.RoleOperation, string(CategorySMScheduleCurrent), true},
		{domain.RoleOperation, string(CategoryDailyMistakesPrevious), false},
		{domain.Role("ghost"), string(CategoryDealerScheduleCurrent), false},
	}
	for _, tc := range cases {
		if got := d.CanAccessDataCategory(tc.role, tc.category); got != tc.want {
			t.Errorf("CanAccessDataCategory(%s, %s) = %v, want %v", tc.role, tc.category, got, tc.want)
		}
	}
}

func TestAccessibleCategories(t *testing.T) {
	d := NewDataAccessService(nil)
	if got := len(d.AccessibleCategories(domain.RoleAdmin)); got != len(AllDataCategories) {
		t.Fatalf("admin should read all %d categories, got %d", len(AllDataCategories), got)
	}
	if got := len(d.AccessibleCategories(domain.RoleOperation)); got != 4 {
		t.Fatalf("operation should read 4 categories, got %d", got)
	}
}

func TestTrainingAudiences(t *testing.T) {
	d := NewDataAccessService(nil)
	if got := d.TrainingAudiences(domain.RoleDealer); len(got) != 1 || got[0] != domain.RoleDealer {
		t.Fatalf("dealer audiences = %v", got)
	}
	if got := d.TrainingAudiences(domain.RoleSM); len(got) != 2 {
		t.Fatalf("sm audiences = %v", got)
	}
	if got := d.TrainingAudiences(domain.Role("ghost")); got != nil {
		t.Fatalf("unknown role audiences = %v", got)
	}
}
