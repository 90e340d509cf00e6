// Package school holds the shared academic catalogue (levels, grades, subjects, terms)
// and the per-institution academic years and rooms.
package school

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/tenant"
)

type Level struct {
	core.Model
	Name string `db:"name" json:"name" validate:"required,max=100"`
}

type Grade struct {
	core.Model
	Name      string   `db:"name" json:"name" validate:"required,max=100"`
	ShortName string   `db:"short_name" json:"short_name" validate:"max=50"`
	Color     string   `db:"color" json:"color"`
	Status    string   `db:"status" json:"status"`
	LevelID   null.Int `db:"level_id" json:"level"`
}

type GradeRead struct {
	Grade
	Level *Level `json:"level"`
}

type Subject struct {
	core.Model
	Name      string `db:"name" json:"name" validate:"required,max=100"`
	ShortName string `db:"short_name" json:"short_name" validate:"max=50"`
	Color     string `db:"color" json:"color"`
	Status    string `db:"status" json:"status"`
}

type Term struct {
	core.Model
	Name      string `db:"name" json:"name" validate:"required,max=100"`
	ShortName string `db:"short_name" json:"short_name" validate:"max=50"`
	Status    string `db:"status" json:"status"`
}

type AcademicYear struct {
	core.Model
	Name          string    `db:"name" json:"name" validate:"required,max=100"`
	StartDate     core.Date `db:"start_date" json:"start_date"`
	EndDate       core.Date `db:"end_date" json:"end_date"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	InstitutionID int       `db:"institution_id" json:"institution" validate:"required"`
}

type AcademicYearRead struct {
	AcademicYear
	Institution *tenant.Institution `json:"institution"`
}

// ChangeAcademicYear activates one academic year of an institution.
type ChangeAcademicYear struct {
	AcademicYear int `json:"academic_year" validate:"required"`
}

type Room struct {
	core.Model
	Name              string `db:"name" json:"name" validate:"required,max=100"`
	Type              string `db:"type" json:"type"`
	FloorNumber       int    `db:"floor_number" json:"floor_number" validate:"gte=0"`
	NumberOfSeats     int    `db:"number_of_seats" json:"number_of_seats" validate:"gte=0"`
	NumberOfComputers int    `db:"number_of_computers" json:"number_of_computers" validate:"gte=0"`
	HasProjector      bool   `db:"has_projector" json:"has_projector"`
	HasSmartBoard     bool   `db:"has_smart_board" json:"has_smart_board"`
	Status            string `db:"status" json:"status"`
	InstitutionID     int    `db:"institution_id" json:"institution" validate:"required"`
}

type RoomRead struct {
	Room
	Institution *tenant.Institution `json:"institution"`
}

type NameFilter struct {
	Search string `query:"search"`
}

func (f NameFilter) Where() sq.Sqlizer {
	return query.Contains("name", f.Search)
}

type GradeFilter struct {
	Search string `query:"search"`
	Level  string `query:"level"`
	Status string `query:"status"`
}

func (f GradeFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "short_name"),
		query.ID("level_id", f.Level),
		query.Text("status", f.Status),
	)
}

type AcademicYearFilter struct {
	Institution string `query:"institution"`
	IsActive    string `query:"is_active"`
}

func (f AcademicYearFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("institution_id", f.Institution),
		query.Bool("is_active", f.IsActive),
	)
}

type RoomFilter struct {
	Search      string `query:"search"`
	Institution string `query:"institution"`
	Type        string `query:"type"`
	Status      string `query:"status"`
}

func (f RoomFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "name", "type"),
		query.ID("institution_id", f.Institution),
		query.IExact("type", f.Type),
		query.Text("status", f.Status),
	)
}
