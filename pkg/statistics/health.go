package statistics

import (
	"context"
	"fmt"

	"github.com/fitmatch/insights/pkg/fitness"
)

// Clinical BMI thresholds
const (
	bmiUnderweight = 18.5
	bmiOverweight  = 25
	bmiObese       = 30
)

func (d *BMIDistribution) fill(values []float64) {
	d.Samples = int64(len(values))
	var under, normal, over, obese int64
	for _, v := range values {
		switch {
		case v < bmiUnderweight:
			under++
		case v < bmiOverweight:
			normal++
		case v < bmiObese:
			over++
		default:
			obese++
		}
	}
	d.Underweight = percentOf(under, d.Samples)
	d.Normal = percentOf(normal, d.Samples)
	d.Overweight = percentOf(over, d.Samples)
	d.Obese = percentOf(obese, d.Samples)
}

func (s *Service) healthAnalytics(ctx context.Context, w fitness.Window) (*HealthAnalytics, error) {
	report := newHealthAnalytics()

	records, err := s.store.HealthRecords(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load health records: %w", err)
	}

	var bmi, height, weight, sleep, water mean
	var bmiValues []float64
	tracked := make(UserSet)
	diseases := make(map[string]UserSet)
	monthlyBMI := make(map[string]*mean)

	for _, r := range records {
		report.TotalRecords++
		tracked.Add(r.UserID)

		bmi.add(r.BMI)
		height.add(r.HeightCm)
		weight.add(r.WeightKg)
		sleep.add(r.SleepHours)
		water.add(r.WaterLiters)

		if r.BMI != nil {
			bmiValues = append(bmiValues, *r.BMI)
			key := monthKey(r.RecordDate)
			if monthlyBMI[key] == nil {
				monthlyBMI[key] = &mean{}
			}
			monthlyBMI[key].add(r.BMI)
		}

		if r.DiseaseID != nil {
			name := unknownLabel
			if r.DiseaseName != nil {
				name = labelOr(*r.DiseaseName)
			}
			if diseases[name] == nil {
				diseases[name] = make(UserSet)
			}
			diseases[name].Add(r.UserID)
		}
	}

	report.UsersTracked = int64(len(tracked))
	report.AverageBMI = bmi.value()
	report.AverageHeightCm = height.value()
	report.AverageWeightKg = weight.value()
	report.AverageSleepHours = sleep.value()
	report.AverageWaterLiters = water.value()
	report.BMIDistribution.fill(bmiValues)
	report.BMITrend = meanSeries(monthlyBMI)

	// Prevalence counts affected users, not records.
	prevalence := make(map[string]int64, len(diseases))
	for name, users := range diseases {
		prevalence[name] = int64(len(users))
	}
	report.Diseases = labeledCounts(prevalence, report.UsersTracked)
	return report, nil
}
