package verifications

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

func rating(v int) *int { return &v }

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, RatingAggregate{}, Aggregate(nil))
	assert.Equal(t, RatingAggregate{}, Aggregate([]models.Verification{}))
}

func TestAggregateAveragesOnlySuppliedDimensions(t *testing.T) {
	got := Aggregate([]models.Verification{
		{RatingCompletion: rating(5)},
		{RatingCompletion: rating(3), RatingQuality: rating(2)},
	})
	assert.Equal(t, 4, got.Completion)
	assert.Equal(t, 2, got.Quality)
	assert.Equal(t, 0, got.Documentation)
	assert.Equal(t, 0, got.Average)
	assert.Equal(t, 2, got.Count)
}

func TestAggregateRoundsToNearest(t *testing.T) {
	got := Aggregate([]models.Verification{
		{RatingDocumentation: rating(4), RatingAverage: rating(4)},
		{RatingDocumentation: rating(5), RatingAverage: rating(4)},
		{RatingAverage: rating(5)},
	})
	// 4.5 rounds half away from zero, 13/3 rounds down
	assert.Equal(t, 5, got.Documentation)
	assert.Equal(t, 4, got.Average)
}
