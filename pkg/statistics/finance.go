package statistics

import (
	"context"
	"fmt"
	"sort"

	"github.com/fitmatch/insights/pkg/fitness"
)

// commissionSplit divides completed revenue between platform and trainers.
// The payout is derived by subtraction so both parts always sum to total.
func commissionSplit(total float64) (net, payout float64) {
	net = round2(total * PlatformCommissionRate)
	payout = round2(total - net)
	return net, payout
}

func (s *Service) financeAnalytics(ctx context.Context, w fitness.Window) (*FinanceAnalytics, error) {
	report := newFinanceAnalytics()

	transactions, err := s.store.Transactions(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	var total float64
	statuses := make(map[string]int64)
	methods := make(map[string]*MethodRevenue)
	monthly := make(map[string]float64)
	for _, tx := range transactions {
		report.TotalTransactions++
		statuses[labelOr(tx.Status)]++
		if tx.Status != fitness.TransactionCompleted {
			continue
		}
		report.CompletedTransactions++
		total += tx.Amount
		monthly[monthKey(tx.CreatedAt)] += tx.Amount

		name := labelOr(tx.PaymentMethod)
		m, ok := methods[name]
		if !ok {
			m = &MethodRevenue{Method: name}
			methods[name] = m
		}
		m.Transactions++
		m.Revenue += tx.Amount
	}

	report.TotalRevenue = round2(total)
	report.NetRevenue, report.TrainerPayout = commissionSplit(report.TotalRevenue)
	report.SuccessRate = percentOf(report.CompletedTransactions, report.TotalTransactions)
	report.AverageTransactionValue = average(total, report.CompletedTransactions)
	report.TransactionsByStatus = labeledCounts(statuses, report.TotalTransactions)

	byMethod := make([]MethodRevenue, 0, len(methods))
	for _, m := range methods {
		if total > 0 {
			m.Percentage = round2(m.Revenue / total * 100)
		}
		m.Revenue = round2(m.Revenue)
		byMethod = append(byMethod, *m)
	}
	sort.Slice(byMethod, func(i, j int) bool {
		if byMethod[i].Revenue != byMethod[j].Revenue {
			return byMethod[i].Revenue > byMethod[j].Revenue
		}
		return byMethod[i].Method < byMethod[j].Method
	})
	report.RevenueByMethod = byMethod

	series := make([]ValuePoint, 0, len(monthly))
	for month, v := range monthly {
		series = append(series, ValuePoint{Date: month, Value: round2(v)})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	report.MonthlyRevenue = series
	return report, nil
}
