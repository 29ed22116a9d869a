package verifications

import (
	"math"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

// RatingAggregate is the per-dimension mean of verifier ratings. Each
// dimension averages only the records that supplied it.
type RatingAggregate struct {
	Completion    int `json:"completion"`
	Documentation int `json:"documentation"`
	Quality       int `json:"quality"`
	Average       int `json:"average"`
	Count         int `json:"count"`
}

type meanAcc struct {
	sum, n int
}

func (m *meanAcc) add(v *int) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m meanAcc) rounded() int {
	if m.n == 0 {
		return 0
	}
	return int(math.Round(float64(m.sum) / float64(m.n)))
}

// Aggregate folds verification ratings into a RatingAggregate. Empty input
// yields all zeros.
func Aggregate(records []models.Verification) RatingAggregate {
	var completion, documentation, quality, average meanAcc
	for i := range records {
		completion.add(records[i].RatingCompletion)
		documentation.add(records[i].RatingDocumentation)
		quality.add(records[i].RatingQuality)
		average.add(records[i].RatingAverage)
	}
	return RatingAggregate{
		Completion:    completion.rounded(),
		Documentation: documentation.rounded(),
		Quality:       quality.rounded(),
		Average:       average.rounded(),
		Count:         len(records),
	}
}
