// Package api exposes the statistics service over HTTP.
//
// Routes live under /api/v1:
//
//	GET /statistics                    composite dashboard report
//	GET /statistics/overview           headline counts and growth
//	GET /statistics/users              client population
//	GET /statistics/trainers           trainer leaderboard and bookings
//	GET /statistics/health             health records
//	GET /statistics/goals              goals
//	GET /statistics/workouts           workout logs
//	GET /statistics/nutrition          food diary
//	GET /statistics/finance            payments
//	GET /statistics/system             per-table row counts
//	GET /statistics/behavior           app usage
//	GET /statistics/recent-activities  newest platform events (?limit=N)
//	GET /statistics/retention          cohort retention (?days=N)
//
// Windowed routes accept optional from and to query parameters
// (YYYY-MM-DD, inclusive). Without either the report covers all time; with
// only one the other defaults to the current month. Malformed dates and
// inverted ranges are rejected with 400; store failures yield 500.
package api
