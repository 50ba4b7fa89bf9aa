package statistics

import (
	"context"
	"fmt"
	"sort"

	"github.com/fitmatch/insights/pkg/fitness"
)

const topTrainersLimit = 5

func (s *Service) ptAnalytics(ctx context.Context, w fitness.Window) (*PTAnalytics, error) {
	report := newPTAnalytics()

	trainers, err := s.store.Trainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trainers: %w", err)
	}
	bookings, err := s.store.Bookings(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	ratings, err := s.store.Ratings(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	transactions, err := s.store.Transactions(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	summaries := make(map[string]*TrainerSummary, len(trainers))
	summaryFor := func(id string) *TrainerSummary {
		if sum, ok := summaries[id]; ok {
			return sum
		}
		sum := &TrainerSummary{TrainerID: id, FullName: id}
		summaries[id] = sum
		return sum
	}

	specialties := make(map[string]int64)
	var experience float64
	for _, t := range trainers {
		report.TotalTrainers++
		if t.Verified {
			report.VerifiedTrainers++
		}
		if w.Contains(t.CreatedAt) {
			report.NewTrainersInRange++
		}
		experience += float64(t.ExperienceYears)
		specialty := unknownLabel
		if t.Specialty != nil {
			specialty = labelOr(*t.Specialty)
		}
		specialties[specialty]++
		summaryFor(t.UserID).FullName = t.FullName
	}
	report.AverageExperienceYears = average(experience, report.TotalTrainers)
	report.Specialties = labeledCounts(specialties, report.TotalTrainers)

	statuses := make(map[string]int64)
	clients := make(UserSet)
	booked := make(UserSet)
	for _, b := range bookings {
		report.TotalBookings++
		statuses[labelOr(b.Status)]++
		clients.Add(b.ClientID)
		booked.Add(b.TrainerID)

		sum := summaryFor(b.TrainerID)
		sum.Bookings++
		switch b.Status {
		case fitness.BookingCompleted:
			report.CompletedBookings++
			sum.CompletedBookings++
		case fitness.BookingCancelled:
			report.CancelledBookings++
		}
	}
	report.BookingsByStatus = labeledCounts(statuses, report.TotalBookings)
	report.CancelRate = percentOf(report.CancelledBookings, report.TotalBookings)
	report.ClientsPerTrainer = average(float64(len(clients)), int64(len(booked)))

	var scoreSum float64
	scores := make(map[string]float64)
	for _, r := range ratings {
		report.TotalRatings++
		scoreSum += float64(r.Score)
		scores[r.TrainerID] += float64(r.Score)
		summaryFor(r.TrainerID).Ratings++
	}
	report.AverageRating = average(scoreSum, report.TotalRatings)

	for _, tx := range transactions {
		if tx.Status != fitness.TransactionCompleted || tx.TrainerID == nil || *tx.TrainerID == "" {
			continue
		}
		summaryFor(*tx.TrainerID).Revenue += tx.Amount
	}

	top := make([]TrainerSummary, 0, len(summaries))
	for id, sum := range summaries {
		sum.AverageRating = average(scores[id], sum.Ratings)
		sum.Revenue = round2(sum.Revenue)
		top = append(top, *sum)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Bookings != top[j].Bookings {
			return top[i].Bookings > top[j].Bookings
		}
		if top[i].Revenue != top[j].Revenue {
			return top[i].Revenue > top[j].Revenue
		}
		return top[i].TrainerID < top[j].TrainerID
	})
	report.TopTrainers = topN(top, topTrainersLimit)
	return report, nil
}
