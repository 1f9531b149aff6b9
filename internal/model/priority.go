package model

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DeadlineLayout is the format the project editor writes
const DeadlineLayout = "2006-01-02"

// Priority levels handed out by RankByDeadline, nearest deadline first
var priorityLevels = []int{5, 4, 3, 2, 1}

// LowestPriority is given to projects without a usable deadline
const LowestPriority = 1

var naturalDates = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDeadline reads a deadline as YYYY-MM-DD, falling back to natural
// language ("next friday") relative to now.
func ParseDeadline(deadline string, now time.Time) (time.Time, bool) {
	deadline = strings.TrimSpace(deadline)
	if deadline == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(DeadlineLayout, deadline, now.Location()); err == nil {
		return t, true
	}
	r, err := naturalDates.Parse(deadline, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// RankedProject is a project with its computed priority
type RankedProject struct {
	Project
	Priority int
	DaysLeft *int // nil when the project has no usable deadline
}

// RankByDeadline orders projects by days until their deadline and assigns
// priorities 5..1 by position, repeating after five. Projects without a
// usable deadline follow with the lowest priority, in input order.
func RankByDeadline(projects []Project, now time.Time) []RankedProject {
	type dated struct {
		p    Project
		days int
	}
	var withDeadline []dated
	var without []Project
	for _, p := range projects {
		t, ok := ParseDeadline(p.Deadline, now)
		if !ok {
			without = append(without, p)
			continue
		}
		withDeadline = append(withDeadline, dated{p: p, days: int(math.Floor(t.Sub(now).Hours() / 24))})
	}

	sort.SliceStable(withDeadline, func(i, j int) bool {
		return withDeadline[i].days < withDeadline[j].days
	})

	out := make([]RankedProject, 0, len(projects))
	for i, d := range withDeadline {
		days := d.days
		out = append(out, RankedProject{
			Project:  d.p,
			Priority: priorityLevels[i%len(priorityLevels)],
			DaysLeft: &days,
		})
	}
	for _, p := range without {
		out = append(out, RankedProject{Project: p, Priority: LowestPriority})
	}
	return out
}
