package academic

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
)

// Calendar entry types
const (
	EventPeriod     = "period"
	EventAssignment = "assignment"
	EventExam       = "exam"
)

type (
	CalendarEvent struct {
		Type    string `json:"type,omitempty"`
		ID      int    `json:"id"`
		Title   string `json:"title"`
		Subject string `json:"subject"`
	}

	// TeacherDay lists everything a teacher has on one day of the month.
	TeacherDay struct {
		Date   string          `json:"date"`
		Day    string          `json:"day"`
		Events []CalendarEvent `json:"events"`
	}

	StudentDay struct {
		Date           string          `json:"date"`
		Day            string          `json:"day"`
		Periods        []CalendarEvent `json:"periods"`
		AssignmentsDue []CalendarEvent `json:"assignments_due"`
		Exams          []CalendarEvent `json:"exams"`
	}

	// month holds the timetable and the assessments of one month, indexed by day.
	month struct {
		days        []time.Time
		periods     map[time.Weekday][]CalendarEvent
		assignments map[string][]CalendarEvent
		exams       map[string][]CalendarEvent
	}
)

var weekdays = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		m[d.String()] = d
	}
	return m
}()

// MonthDays returns the days of a calendar month.
func MonthDays(year int, m time.Month) []time.Time {
	first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	days := make([]time.Time, 0, 31)
	for d := first; d.Month() == m; d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// TeacherCalendar lists the periods, assignment deadlines and exams of a teacher for each day of a month.
func (svc *Service) TeacherCalendar(ctx context.Context, scope query.Scope, userID, year int, m time.Month) ([]TeacherDay, error) {
	emp, err := svc.profiles.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cal, err := svc.loadMonth(ctx, scope, taughtBy(emp.ID), emp.InstitutionID, year, m)
	if err != nil {
		return nil, err
	}
	res := make([]TeacherDay, len(cal.days))
	for i, d := range cal.days {
		key := d.Format(core.DateLayout)
		events := make([]CalendarEvent, 0)
		events = append(events, cal.periods[d.Weekday()]...)
		events = append(events, cal.assignments[key]...)
		events = append(events, cal.exams[key]...)
		res[i] = TeacherDay{Date: key, Day: d.Weekday().String(), Events: events}
	}
	return res, nil
}

// StudentCalendar lists the periods, assignment deadlines and exams of a student's classes for each day of a month.
func (svc *Service) StudentCalendar(ctx context.Context, scope query.Scope, userID, year int, m time.Month) ([]StudentDay, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cal, err := svc.loadMonth(ctx, scope, attendedBy(st.ID), st.InstitutionID, year, m)
	if err != nil {
		return nil, err
	}
	res := make([]StudentDay, len(cal.days))
	for i, d := range cal.days {
		key := d.Format(core.DateLayout)
		res[i] = StudentDay{
			Date:           key,
			Day:            d.Weekday().String(),
			Periods:        untyped(cal.periods[d.Weekday()]),
			AssignmentsDue: untyped(cal.assignments[key]),
			Exams:          untyped(cal.exams[key]),
		}
	}
	return res, nil
}

func (svc *Service) loadMonth(ctx context.Context, scope query.Scope, byClassSubject sq.Sqlizer, institutionID, year int, m time.Month) (month, error) {
	cal := month{
		days:        MonthDays(year, m),
		periods:     make(map[time.Weekday][]CalendarEvent),
		assignments: make(map[string][]CalendarEvent),
		exams:       make(map[string][]CalendarEvent),
	}
	yearPred, err := svc.activeYear(ctx, institutionID)
	if err != nil {
		return cal, err
	}

	periods, _, err := svc.stores.Periods.List(ctx, scope, core.ListParams{
		Where: byClassSubject, Ordering: []core.DBOrdering{{Field: "period", Ascending: true}}, All: true,
	})
	if err != nil {
		return cal, errors.Wrap(err, "listing periods")
	}
	assignments, _, err := svc.stores.Assignments.List(ctx, scope, core.ListParams{
		Where:    query.All(byClassSubject, query.InMonth("due_date", year, m), yearPred),
		Ordering: []core.DBOrdering{{Field: "due_date", Ascending: true}},
		All:      true,
	})
	if err != nil {
		return cal, errors.Wrap(err, "listing assignments")
	}
	exams, _, err := svc.stores.Exams.List(ctx, scope, core.ListParams{
		Where:    query.All(byClassSubject, query.InMonth("date", year, m), yearPred),
		Ordering: []core.DBOrdering{{Field: "date", Ascending: true}},
		All:      true,
	})
	if err != nil {
		return cal, errors.Wrap(err, "listing exams")
	}

	csIDs := core.IDs(periods, func(p Period) int { return p.ClassSubjectID })
	csIDs = append(csIDs, core.IDs(assignments, func(a Assignment) int { return a.ClassSubjectID })...)
	csIDs = append(csIDs, core.IDs(exams, func(e Exam) int { return e.ClassSubjectID })...)
	names, err := svc.classSubjectNames(ctx, csIDs)
	if err != nil {
		return cal, err
	}

	for _, p := range periods {
		day, ok := weekdays[p.Day]
		if !ok {
			continue
		}
		n := names[p.ClassSubjectID]
		cal.periods[day] = append(cal.periods[day], CalendarEvent{
			Type:    EventPeriod,
			ID:      p.ID,
			Title:   fmt.Sprintf("%s - (%s - %s)", n.class, p.Start, p.End),
			Subject: n.subject,
		})
	}
	for _, a := range assignments {
		due := a.DueDate.Time.UTC()
		key := due.Format(core.DateLayout)
		cal.assignments[key] = append(cal.assignments[key], CalendarEvent{
			Type:    EventAssignment,
			ID:      a.ID,
			Title:   fmt.Sprintf("%s - (%s - %s)", a.Title, due.Add(-time.Hour).Format(core.TimeLayout), due.Format(core.TimeLayout)),
			Subject: names[a.ClassSubjectID].subject,
		})
	}
	for _, e := range exams {
		key := e.Date.String()
		cal.exams[key] = append(cal.exams[key], CalendarEvent{
			Type:    EventExam,
			ID:      e.ID,
			Title:   fmt.Sprintf("%s - (%s - %s)", e.Title, e.Start, e.End),
			Subject: names[e.ClassSubjectID].subject,
		})
	}
	return cal, nil
}

type classSubjectName struct {
	class   string
	subject string
}

func (svc *Service) classSubjectNames(ctx context.Context, ids []int) (map[int]classSubjectName, error) {
	css, err := svc.stores.ClassSubjects.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	list := make([]ClassSubject, 0, len(css))
	for _, cs := range css {
		list = append(list, cs)
	}
	classes, err := svc.stores.Classes.GetMany(ctx, core.IDs(list, func(cs ClassSubject) int { return cs.ClassID }))
	if err != nil {
		return nil, err
	}
	var subjects map[int]school.Subject
	if subjects, err = svc.loaders.Subjects.GetMany(ctx, core.IDs(list, func(cs ClassSubject) int { return cs.SubjectID })); err != nil {
		return nil, err
	}
	names := make(map[int]classSubjectName, len(list))
	for _, cs := range list {
		names[cs.ID] = classSubjectName{class: classes[cs.ClassID].Name, subject: subjects[cs.SubjectID].Name}
	}
	return names, nil
}

// untyped drops the entry type, implied by the list a student day puts the entry in.
func untyped(events []CalendarEvent) []CalendarEvent {
	res := make([]CalendarEvent, len(events))
	for i, e := range events {
		e.Type = ""
		res[i] = e
	}
	return res
}
