package statistics

import (
	"context"
	"fmt"
	"sort"

	"github.com/fitmatch/insights/pkg/fitness"
)

const topFoodsLimit = 5

// Energy per gram of macronutrient, in kcal
const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

func (s *Service) nutritionAnalytics(ctx context.Context, w fitness.Window) (*NutritionAnalytics, error) {
	report := newNutritionAnalytics()

	logs, err := s.store.NutritionLogs(ctx, w, fitness.PopulationClients)
	if err != nil {
		return nil, fmt.Errorf("failed to load nutrition logs: %w", err)
	}

	var calories, protein, carbs, fat float64
	users := make(UserSet)
	userDays := make(map[fitness.UserDay]struct{})
	meals := make(map[string]int64)
	foods := make(map[string]*FoodSummary)
	dailyCalories := make(map[string]float64)
	dailyUsers := make(map[string]UserSet)

	for _, l := range logs {
		report.TotalLogs++
		users.Add(l.UserID)
		day := fitness.StartOfDay(l.LogDate)
		userDays[fitness.UserDay{UserID: l.UserID, Day: day}] = struct{}{}

		calories += l.Calories
		protein += l.ProteinG
		carbs += l.CarbsG
		fat += l.FatG
		meals[labelOr(l.MealType)]++

		name := unknownLabel
		if l.FoodName != nil {
			name = labelOr(*l.FoodName)
		}
		food, ok := foods[name]
		if !ok {
			food = &FoodSummary{Name: name}
			foods[name] = food
		}
		food.Entries++
		food.Calories += l.Calories

		key := dayKey(day)
		dailyCalories[key] += l.Calories
		if dailyUsers[key] == nil {
			dailyUsers[key] = make(UserSet)
		}
		dailyUsers[key].Add(l.UserID)
	}

	report.UsersLogging = int64(len(users))
	report.AverageDailyCalories = average(calories, int64(len(userDays)))
	report.AverageProteinG = average(protein, report.TotalLogs)
	report.AverageCarbsG = average(carbs, report.TotalLogs)
	report.AverageFatG = average(fat, report.TotalLogs)
	report.MealTypes = labeledCounts(meals, report.TotalLogs)

	macroKcal := protein*kcalPerGramProtein + carbs*kcalPerGramCarbs + fat*kcalPerGramFat
	if macroKcal > 0 {
		report.MacroSplit = MacroSplit{
			ProteinPct: round2(protein * kcalPerGramProtein / macroKcal * 100),
			CarbsPct:   round2(carbs * kcalPerGramCarbs / macroKcal * 100),
			FatPct:     round2(fat * kcalPerGramFat / macroKcal * 100),
		}
	}

	// Daily calories are per logging user so busy days do not dominate.
	series := make([]ValuePoint, 0, len(dailyCalories))
	for day, total := range dailyCalories {
		series = append(series, ValuePoint{Date: day, Value: average(total, int64(len(dailyUsers[day])))})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	report.DailyCalories = series

	top := make([]FoodSummary, 0, len(foods))
	for _, f := range foods {
		f.Calories = round2(f.Calories)
		top = append(top, *f)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Entries != top[j].Entries {
			return top[i].Entries > top[j].Entries
		}
		return top[i].Name < top[j].Name
	})
	report.TopFoods = topN(top, topFoodsLimit)
	return report, nil
}
