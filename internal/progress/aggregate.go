// Package progress derives completion metrics from the visible task set and
// keeps one DailyProgress record per owner and day.
package progress

import (
	"sort"

	"github.com/JamesPrial/tasksync/internal/task"
)

// RecentLimit is how many tasks Summary.Recent holds.
const RecentLimit = 5

// Summary is the aggregate view of a task set.
type Summary struct {
	Today          task.Date             `json:"today"`
	TotalToday     int                   `json:"totalToday"`
	CompletedToday int                   `json:"completedToday"`
	TotalTasks     int                   `json:"totalTasks"`
	CompletedTasks int                   `json:"completedTasks"`
	PendingTasks   int                   `json:"pendingTasks"`
	CompletionRate float64               `json:"completionRate"`
	TodayRate      float64               `json:"todayRate"`
	ByPriority     map[task.Priority]int `json:"byPriority"`
	Recent         []task.Task           `json:"recent"`
}

// Compute aggregates tasks. Tasks count toward today when their due date is
// today. Rates are in [0, 1] and are 0 when there is nothing to divide by.
func Compute(tasks []task.Task, today task.Date) Summary {
	s := Summary{
		Today:      today,
		ByPriority: make(map[task.Priority]int, len(task.Priorities)),
	}
	for _, p := range task.Priorities {
		s.ByPriority[p] = 0
	}

	for _, t := range tasks {
		s.TotalTasks++
		if t.Completed() {
			s.CompletedTasks++
		} else {
			s.PendingTasks++
		}
		if t.Priority.Valid() {
			s.ByPriority[t.Priority]++
		}
		if !today.IsZero() && t.DueDate == today {
			s.TotalToday++
			if t.Completed() {
				s.CompletedToday++
			}
		}
	}

	s.CompletionRate = ratio(s.CompletedTasks, s.TotalTasks)
	s.TodayRate = ratio(s.CompletedToday, s.TotalToday)
	s.Recent = recent(tasks, RecentLimit)
	return s
}

// GoalProgress returns completedToday / dailyGoal clamped to [0, 1]. A goal
// that is not positive yields 0.
func GoalProgress(completedToday, dailyGoal int) float64 {
	if dailyGoal <= 0 || completedToday <= 0 {
		return 0
	}
	if completedToday >= dailyGoal {
		return 1
	}
	return float64(completedToday) / float64(dailyGoal)
}

func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// recent returns up to n tasks, newest CreatedAt first.
func recent(tasks []task.Task, n int) []task.Task {
	out := task.Clone(tasks)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
