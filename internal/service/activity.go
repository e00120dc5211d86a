package service

import (
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
)

// ComputeActivity folds a transaction log into the dashboard's 7-day
// income/expense series, oldest day first and inclusive of the reference
// day. Deposits and commissions count as income, everything else as
// expense. Pure and fully recomputed on every call; there is no persisted
// aggregate state.
func ComputeActivity(entries []domain.Transaction, ref time.Time) []domain.ActivityPoint {
	byDay := make(map[string]*domain.ActivityPoint, 7)
	points := make([]domain.ActivityPoint, 0, 7)

	for i := 6; i >= 0; i-- {
		day := ref.AddDate(0, 0, -i)
		date := day.Format("2006-01-02")
		points = append(points, domain.ActivityPoint{
			Day:  day.Format("Mon"),
			Date: date,
		})
		byDay[date] = &points[len(points)-1]
	}

	for _, t := range entries {
		p, ok := byDay[t.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		switch t.Type {
		case domain.TxDeposit, domain.TxCommission:
			p.Income += t.Amount
		default:
			p.Expense += t.Amount
		}
	}

	return points
}
