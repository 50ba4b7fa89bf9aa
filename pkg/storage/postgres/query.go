package postgres

import (
	"fmt"
	"strings"

	"github.com/fitmatch/insights/pkg/fitness"
)

// sourceSpec describes where an activity source lives
type sourceSpec struct {
	table    string
	timeCol  string
	dateOnly bool   // timeCol is a DATE rather than a TIMESTAMPTZ
	extra    string // additional predicate the source always applies
}

var activitySources = map[fitness.ActivitySource]sourceSpec{
	fitness.SourceAppUsage:  {table: "app_usage_logs", timeCol: "occurred_at"},
	fitness.SourceHealth:    {table: "health_records", timeCol: "record_date", dateOnly: true},
	fitness.SourceNutrition: {table: "nutrition_logs", timeCol: "log_date", dateOnly: true},
	fitness.SourceWorkout:   {table: "workout_logs", timeCol: "log_date", dateOnly: true, extra: "completed = TRUE"},
}

// dayExpr returns the expression yielding the UTC calendar day of an event
func (s sourceSpec) dayExpr() string {
	if s.dateOnly {
		return s.timeCol
	}
	return fmt.Sprintf("(%s AT TIME ZONE 'UTC')::date", s.timeCol)
}

// entitySpec describes how to count one table. An empty timeCol means the
// table has no time dimension and window counts equal totals.
type entitySpec struct {
	timeCol  string
	dateOnly bool
}

var entities = map[fitness.Entity]entitySpec{
	fitness.EntityUsers:         {timeCol: "created_at"},
	fitness.EntityTrainers:      {timeCol: "created_at"},
	fitness.EntityFoods:         {timeCol: "created_at"},
	fitness.EntityDiseases:      {},
	fitness.EntityMemberships:   {timeCol: "start_date", dateOnly: true},
	fitness.EntityBookings:      {timeCol: "scheduled_at"},
	fitness.EntityRatings:       {timeCol: "created_at"},
	fitness.EntityTransactions:  {timeCol: "created_at"},
	fitness.EntityGoals:         {timeCol: "start_date", dateOnly: true},
	fitness.EntityHealthRecords: {timeCol: "record_date", dateOnly: true},
	fitness.EntityWorkoutLogs:   {timeCol: "log_date", dateOnly: true},
	fitness.EntityNutritionLogs: {timeCol: "log_date", dateOnly: true},
	fitness.EntityAppEvents:     {timeCol: "occurred_at"},
}

// roleClause restricts the users table to a population
func roleClause(pop fitness.Population) string {
	switch pop {
	case fitness.PopulationClients:
		return fmt.Sprintf("role NOT IN ('%s', '%s')", fitness.RolePT, fitness.RoleAdmin)
	case fitness.PopulationTrainers:
		return fmt.Sprintf("role = '%s'", fitness.RolePT)
	default:
		return ""
	}
}

// populationClause restricts a user id column to a population. Every
// client-facing query goes through here.
func populationClause(col string, pop fitness.Population) string {
	role := roleClause(pop)
	if role == "" {
		return ""
	}
	return fmt.Sprintf("%s IN (SELECT id FROM users WHERE %s)", col, role)
}

// windowBounds returns the query arguments for w. Date columns compare
// against calendar dates, timestamp columns against instants.
func windowBounds(w fitness.Window, dateOnly bool) (interface{}, interface{}) {
	if dateOnly {
		return w.Start.Format(fitness.DateLayout), w.End.Format(fitness.DateLayout)
	}
	return w.Start, w.End
}

// filter accumulates WHERE conditions and their positional arguments
type filter struct {
	conds []string
	args  []interface{}
}

// where adds cond, replacing each ? with the next positional placeholder
func (f *filter) where(cond string, args ...interface{}) *filter {
	for _, a := range args {
		f.args = append(f.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(f.args)), 1)
	}
	f.conds = append(f.conds, cond)
	return f
}

func (f *filter) window(col string, dateOnly bool, w fitness.Window) *filter {
	start, end := windowBounds(w, dateOnly)
	return f.where(fmt.Sprintf("%s >= ? AND %s < ?", col, col), start, end)
}

func (f *filter) population(col string, pop fitness.Population) *filter {
	if c := populationClause(col, pop); c != "" {
		f.conds = append(f.conds, c)
	}
	return f
}

func (f *filter) role(pop fitness.Population) *filter {
	if c := roleClause(pop); c != "" {
		f.conds = append(f.conds, c)
	}
	return f
}

// knownUser drops rows without a usable user id
func (f *filter) knownUser(col string) *filter {
	f.conds = append(f.conds, fmt.Sprintf("%s IS NOT NULL AND %s <> ''", col, col))
	return f
}

// arg appends a positional argument and returns its placeholder
func (f *filter) arg(v interface{}) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

func (f *filter) sql() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// activityShape selects what an activity query returns
type activityShape int

const (
	shapeUsers activityShape = iota // distinct user ids
	shapeDays                       // distinct (user id, day) pairs
	shapeLast                       // latest day per user
)

// activityQuery builds the single query for one source, population and
// shape. A nil window reads the whole source.
func activityQuery(def sourceSpec, pop fitness.Population, w *fitness.Window, shape activityShape) (string, []interface{}) {
	f := &filter{}
	f.knownUser("user_id")
	if def.extra != "" {
		f.where(def.extra)
	}
	f.population("user_id", pop)
	if w != nil {
		f.window(def.timeCol, def.dateOnly, *w)
	}

	var q string
	switch shape {
	case shapeDays:
		q = fmt.Sprintf("SELECT DISTINCT user_id, %s AS day FROM %s%s", def.dayExpr(), def.table, f.sql())
	case shapeLast:
		q = fmt.Sprintf("SELECT user_id, MAX(%s) AS day FROM %s%s GROUP BY user_id", def.dayExpr(), def.table, f.sql())
	default:
		q = fmt.Sprintf("SELECT DISTINCT user_id FROM %s%s", def.table, f.sql())
	}
	return q, f.args
}
