package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// SeedUser inserts an active user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:           id,
		Email:        id.String() + "@example.com",
		PasswordHash: "x",
		Name:         string(role) + " " + id.String()[:8],
		Role:         role,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedProject inserts a project with one milestone per weight. Each milestone
// estimates goal * weight / 100.
func SeedProject(t testing.TB, conn *gorm.DB, ownerID uuid.UUID, status enums.ProjectStatus, goal string, weights ...float64) (*models.Project, []models.Milestone) {
	t.Helper()
	g := decimal.RequireFromString(goal)
	project := &models.Project{
		OwnerID:        ownerID,
		Title:          "Solar microgrid",
		Description:    "Community solar for the valley",
		FundingGoal:    g,
		CurrentFunding: decimal.Zero,
		PledgedFunding: decimal.Zero,
		Status:         status,
		SDGs:           []string{"7"},
	}
	if err := conn.Create(project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	due := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	milestones := make([]models.Milestone, 0, len(weights))
	for i, w := range weights {
		m := models.Milestone{
			ProjectID:            project.ID,
			Position:             i + 1,
			Title:                "Phase " + string(rune('A'+i)),
			Description:          "work",
			DueDate:              due.Add(time.Duration(i) * 24 * time.Hour),
			CompletionPercentage: w,
			EstimatedFunding:     g.Mul(decimal.NewFromFloat(w)).Div(decimal.NewFromInt(100)).Round(2),
			Status:               enums.MilestoneStatusPending,
		}
		if err := conn.Create(&m).Error; err != nil {
			t.Fatalf("seed milestone: %v", err)
		}
		milestones = append(milestones, m)
	}
	return project, milestones
}

// SetMilestoneStatus forces a milestone into a status, stamping approval fields
// for approved milestones.
func SetMilestoneStatus(t testing.TB, conn *gorm.DB, milestoneID uuid.UUID, status enums.MilestoneStatus) {
	t.Helper()
	fields := map[string]any{"status": status}
	if status == enums.MilestoneStatusApproved {
		fields["approved_at"] = time.Now().UTC()
	}
	if err := conn.Model(&models.Milestone{}).Where("id = ?", milestoneID).Updates(fields).Error; err != nil {
		t.Fatalf("set milestone status: %v", err)
	}
}
