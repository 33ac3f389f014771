package security

import (
	"log/slog"

	"github.com/amberops/workspace/internal/domain"
)

// DataCategory identifies one imported data set
type DataCategory string

const (
	CategoryDealerScheduleCurrent    DataCategory = "dealer_schedule_current"
	CategoryDealerScheduleAdjacent   DataCategory = "dealer_schedule_adjacent"
	CategorySMScheduleCurrent        DataCategory = "sm_schedule_current"
	CategorySMScheduleAdjacent       DataCategory = "sm_schedule_adjacent"
	CategoryMistakeStatisticsCurrent DataCategory = "mistake_statistics_current"
	CategoryMistakeStatisticsPrev    DataCategory = "mistake_statistics_previous"
	CategoryDailyMistakesCurrent     DataCategory = "daily_mistakes_current"
	CategoryDailyMistakesPrevious    DataCategory = "daily_mistakes_previous"
)

// AllDataCategories lists the categories known to the import pipeline
var AllDataCategories = []DataCategory{
	CategoryDealerScheduleCurrent, CategoryDealerScheduleAdjacent,
	CategorySMScheduleCurrent, CategorySMScheduleAdjacent,
	CategoryMistakeStatisticsCurrent, CategoryMistakeStatisticsPrev,
	CategoryDailyMistakesCurrent, CategoryDailyMistakesPrevious,
}

// categoryAllowList holds the readable categories of the restricted roles.
// Super and tenant admins are unrestricted and do not appear here.
var categoryAllowList = map[domain.Role]map[DataCategory]bool{
	domain.RoleDealer: {
		CategoryDealerScheduleCurrent:    true,
		CategoryMistakeStatisticsCurrent: true,
		CategoryDailyMistakesCurrent:     true,
	},
	domain.RoleSM: {
		CategorySMScheduleCurrent:        true,
		CategoryMistakeStatisticsCurrent: true,
		CategoryDailyMistakesCurrent:     true,
	},
	domain.RoleOperation: {
		CategoryDealerScheduleCurrent:    true,
		CategorySMScheduleCurrent:        true,
		CategoryMistakeStatisticsCurrent: true,
		CategoryDailyMistakesCurrent:     true,
	},
}

// DataAccessService answers per-category read questions
type DataAccessService struct {
	logger *slog.Logger
}

// NewDataAccessService creates a new data access service
func NewDataAccessService(logger *slog.Logger) *DataAccessService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataAccessService{logger: logger}
}

// CanAccessDataCategory reports whether role may read category. Super and
// tenant admins may read any category, including names not yet known here.
func (d *DataAccessService) CanAccessDataCategory(role domain.Role, category string) bool {
	switch role {
	case domain.RoleSuperAdmin, domain.RoleAdmin:
		return true
	}
	allowed := categoryAllowList[role][DataCategory(category)]
	if !allowed {
		d.logger.Debug("data category denied",
			slog.String("role", string(role)),
			slog.String("category", category),
		)
	}
	return allowed
}

// AccessibleCategories returns the known categories role may read
func (d *DataAccessService) AccessibleCategories(role domain.Role) []DataCategory {
	out := []DataCategory{}
	for _, c := range AllDataCategories {
		if d.CanAccessDataCategory(role, string(c)) {
			out = append(out, c)
		}
	}
	return out
}

// TrainingAudiences returns whose training material role may open.
// Dealers see dealer material only.
func (d *DataAccessService) TrainingAudiences(role domain.Role) []domain.Role {
	if role == domain.RoleDealer {
		return []domain.Role{domain.RoleDealer}
	}
	if !role.Valid() {
		return nil
	}
	return []domain.Role{domain.RoleDealer, domain.RoleSM}
}
