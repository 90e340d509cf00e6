package academic

import (
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toSql(t *testing.T, p sq.Sqlizer) (string, []interface{}) {
	t.Helper()
	sql, args, err := p.ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestRequiredClassFilters(t *testing.T) {
	validators := map[string]func(class string) error{
		"class subjects": func(class string) error { return ClassSubjectFilter{Class: class}.Validate() },
		"class students": func(class string) error { return ClassStudentsFilter{Class: class}.Validate() },
		"periods":        func(class string) error { return PeriodFilter{Class: class}.Validate() },
	}
	for name, validate := range validators {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, validate(""))
			assert.Error(t, validate("  "))
			assert.NoError(t, validate("3"))
		})
	}
}

func TestFilters(t *testing.T) {
	today := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		filter   interface{ Where() sq.Sqlizer }
		wantSql  string
		wantArgs []interface{}
	}{
		{
			name:     "periods of a class",
			filter:   PeriodFilter{Class: "3"},
			wantSql:  "(class_subject_id IN (SELECT id FROM class_subjects WHERE class_id = ?) AND (1=1) AND (1=1))",
			wantArgs: []interface{}{3},
		},
		{
			name:     "students of a class",
			filter:   ClassStudentsFilter{Class: "3", Search: "ann"},
			wantSql:  "(id IN (SELECT student_id FROM class_students WHERE class_id = ?) AND (first_name ILIKE ? OR last_name ILIKE ?))",
			wantArgs: []interface{}{3, "%ann%", "%ann%"},
		},
		{
			name:     "active announcements",
			filter:   AnnouncementFilter{Active: "true", Today: today.Add(15 * time.Hour)},
			wantSql:  "((1=1) AND (expiry_date IS NULL OR expiry_date >= ?))",
			wantArgs: []interface{}{today},
		},
		{
			name:     "all announcements",
			filter:   AnnouncementFilter{Active: "false"},
			wantSql:  "((1=1) AND (1=1))",
			wantArgs: []interface{}{},
		},
		{
			name:     "marks of a subject",
			filter:   MarkFilter{Subject: "9", AssessmentType: AssessmentExam},
			wantSql:  "((1=1) AND (1=1) AND assessment_type = ? AND (1=1) AND class_subject_id IN (SELECT id FROM class_subjects WHERE subject_id = ?) AND (1=1))",
			wantArgs: []interface{}{AssessmentExam, 9},
		},
		{
			name:     "term results of a malformed class match nothing",
			filter:   TermResultFilter{Class: "x"},
			wantSql:  "(class_subject_id IN (SELECT id FROM class_subjects WHERE (1=0)) AND (1=1) AND (1=1) AND (1=1) AND (1=1) AND (1=1) AND (1=1))",
			wantArgs: []interface{}{},
		},
		{
			name:     "term results by grade",
			filter:   TermResultFilter{Grade: "a"},
			wantSql:  "((1=1) AND (1=1) AND (1=1) AND (1=1) AND (1=1) AND (1=1) AND LOWER(grade) = LOWER(?))",
			wantArgs: []interface{}{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := toSql(t, tt.filter.Where())
			assert.Equal(t, tt.wantSql, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestAttendanceFilter(t *testing.T) {
	sql, args := toSql(t, AttendanceFilter{Date: "2024-03-05", ClassSubject: "4"}.Where())
	assert.Contains(t, sql, "lesson_id IN (SELECT id FROM lessons WHERE")
	assert.Contains(t, sql, "period_id IN (SELECT id FROM periods WHERE class_subject_id = ?)")
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []interface{}{day, day.AddDate(0, 0, 1), 4}, args)

	sql, _ = toSql(t, AttendanceFilter{}.Where())
	assert.NotContains(t, sql, "SELECT")
}

func TestLinks(t *testing.T) {
	v, err := Links(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = Links{"https://a.example"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["https://a.example"]`, v)

	var l Links
	require.NoError(t, l.Scan([]byte(`["https://a.example","https://b.example"]`)))
	assert.Equal(t, Links{"https://a.example", "https://b.example"}, l)
	assert.Error(t, l.Scan(42))
}

func TestSubmitAttendanceEntries(t *testing.T) {
	sa := SubmitAttendance{
		Attendances: []AttendanceEntry{{Student: 1, AttendanceGroup: 2}},
	}
	assert.Len(t, sa.Entries(), 1)

	sa.Student, sa.AttendanceGroup = 5, 2
	assert.Equal(t, []AttendanceEntry{{Student: 1, AttendanceGroup: 2}, {Student: 5, AttendanceGroup: 2}}, sa.Entries())

	assert.Empty(t, SubmitAttendance{Student: 5}.Entries())
}

func TestMonthDays(t *testing.T) {
	days := MonthDays(2024, time.February)
	require.Len(t, days, 29)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), days[0])
	assert.Equal(t, time.Thursday, days[0].Weekday())
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), days[28])

	assert.Len(t, MonthDays(2023, time.February), 28)
	assert.Len(t, MonthDays(2024, time.December), 31)
}

func TestUntyped(t *testing.T) {
	events := []CalendarEvent{{Type: EventExam, ID: 1, Title: "Algebra"}}
	got := untyped(events)
	assert.Equal(t, []CalendarEvent{{ID: 1, Title: "Algebra"}}, got)
	assert.Equal(t, EventExam, events[0].Type)
	assert.Empty(t, untyped(nil))
}

func TestWeekdays(t *testing.T) {
	assert.Len(t, weekdays, 7)
	assert.Equal(t, time.Monday, weekdays["Monday"])
	_, ok := weekdays["monday"]
	assert.False(t, ok)
}
