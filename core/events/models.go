package events

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

// Event types
const (
	TypeAcademic        = "academic"
	TypeExtracurricular = "extracurricular"
	TypeSocial          = "social"
	TypeOther           = "other"
)

type Event struct {
	core.Model
	Title          string         `db:"title" json:"title" validate:"required,max=250"`
	Description    string         `db:"description" json:"description"`
	Date           core.Date      `db:"date" json:"date" validate:"required"`
	Type           string         `db:"type" json:"type" validate:"omitempty,oneof=academic extracurricular social other"`
	TermID         null.Int       `db:"term_id" json:"term"`
	Start          core.TimeOfDay `db:"start_time" json:"start"`
	End            core.TimeOfDay `db:"end_time" json:"end"`
	OrganizationID int            `db:"organization_id" json:"organization"`
}

type EventRead struct {
	Event
	Term *school.Term `json:"term"`
}

// Activity is an extracurricular activity offered by an institution.
type Activity struct {
	core.Model
	Name          string `db:"name" json:"name" validate:"required,max=150"`
	ShortName     string `db:"short_name" json:"short_name" validate:"max=50"`
	Color         string `db:"color" json:"color" validate:"max=20"`
	Status        string `db:"status" json:"status" validate:"omitempty,oneof=active inactive"`
	InstitutionID int    `db:"institution_id" json:"institution" validate:"required"`
}

// AgeGroup is a team of students taking part in activities together.
type AgeGroup struct {
	core.Model
	Name            string   `db:"name" json:"name" validate:"required,max=150"`
	ShortName       string   `db:"short_name" json:"short_name" validate:"max=50"`
	GradeID         null.Int `db:"grade_id" json:"grade"`
	Color           string   `db:"color" json:"color" validate:"max=20"`
	MaxPeriodPerDay int      `db:"max_period_per_day" json:"max_period_per_day" validate:"gte=0"`
	ClassTeacherID  null.Int `db:"class_teacher_id" json:"class_teacher"`
	InstitutionID   int      `db:"institution_id" json:"institution" validate:"required"`
}

type AgeGroupRead struct {
	AgeGroup
	Grade        *school.Grade       `json:"grade"`
	ClassTeacher *people.Employee    `json:"class_teacher"`
	Institution  *tenant.Institution `json:"institution"`
}

// AgeGroupMembers adds students to an age group.
type AgeGroupMembers struct {
	AgeGroup int   `json:"age_group" validate:"required"`
	Students []int `json:"students" validate:"required,min=1,dive,gt=0"`
}

type AgeGroupMember struct {
	AgeGroup int `json:"age_group" validate:"required"`
	Student  int `json:"student" validate:"required"`
}

// AgeGroupActivity is an activity an age group takes part in, run by a teacher.
type AgeGroupActivity struct {
	core.Model
	AgeGroupID    int      `db:"age_group_id" json:"age_group" validate:"required"`
	ActivityID    int      `db:"activity_id" json:"activity" validate:"required"`
	TeacherID     null.Int `db:"teacher_id" json:"teacher"`
	InstitutionID int      `db:"institution_id" json:"institution"`
}

type AgeGroupActivityRead struct {
	AgeGroupActivity
	AgeGroup *AgeGroup        `json:"age_group"`
	Activity *Activity        `json:"activity"`
	Teacher  *people.Employee `json:"teacher"`
}

// ActivityPeriod is a weekly timetable slot of an age group activity.
type ActivityPeriod struct {
	core.Model
	AgeGroupActivityID int            `db:"age_group_activity_id" json:"age_group_activity" validate:"required"`
	Day                string         `db:"day" json:"day" validate:"required,weekday"`
	Period             int            `db:"period" json:"period" validate:"gte=0"`
	Start              core.TimeOfDay `db:"start_time" json:"start" validate:"required"`
	End                core.TimeOfDay `db:"end_time" json:"end" validate:"required"`
}

type ActivityPeriodRead struct {
	ActivityPeriod
	AgeGroupActivity *AgeGroupActivity `json:"age_group_activity"`
}

type EventFilter struct {
	Search string `query:"search"`
	Type   string `query:"type"`
	Term   string `query:"term"`
	Start  string `query:"start"`
	End    string `query:"end"`
}

func (f EventFilter) Where() sq.Sqlizer {
	return query.All(
		query.Contains("title", f.Search),
		query.Text("type", f.Type),
		query.ID("term_id", f.Term),
		query.DateRange("date", f.Start, f.End),
	)
}

type ActivityFilter struct {
	Search      string `query:"search"`
	Institution string `query:"institution"`
	Status      string `query:"status"`
}

func (f ActivityFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "short_name"),
		query.ID("institution_id", f.Institution),
		query.Text("status", f.Status),
	)
}

type AgeGroupFilter struct {
	Search      string `query:"search"`
	Grade       string `query:"grade"`
	Institution string `query:"institution"`
}

func (f AgeGroupFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "short_name"),
		query.ID("grade_id", f.Grade),
		query.ID("institution_id", f.Institution),
	)
}

// AgeGroupStudentsFilter lists the students of one age group.
type AgeGroupStudentsFilter struct {
	AgeGroup string `query:"age_group"`
	Search   string `query:"search"`
}

func (f AgeGroupStudentsFilter) Validate() error {
	if strings.TrimSpace(f.AgeGroup) == "" {
		return core.NewFieldError("age_group", "this field is required")
	}
	return nil
}

func (f AgeGroupStudentsFilter) Where() sq.Sqlizer {
	return query.All(
		query.SubSelect("id", "age_group_students", "student_id", query.ID("age_group_id", f.AgeGroup)),
		query.NameSearch("first_name", "last_name", f.Search),
	)
}

type AgeGroupActivityFilter struct {
	AgeGroup string `query:"age_group"`
	Activity string `query:"activity"`
	Teacher  string `query:"teacher"`
}

func (f AgeGroupActivityFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("age_group_id", f.AgeGroup),
		query.ID("activity_id", f.Activity),
		query.ID("teacher_id", f.Teacher),
	)
}

type ActivityPeriodFilter struct {
	AgeGroupActivity string `query:"age_group_activity"`
	Day              string `query:"day"`
}

func (f ActivityPeriodFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("age_group_activity_id", f.AgeGroupActivity),
		query.Text("day", f.Day),
	)
}
