package library

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

// Copy statuses
const (
	StatusAvailable  = "available"
	StatusCheckedOut = "checked_out"
)

type Book struct {
	core.Model
	Type           string    `db:"type" json:"type"`
	ISBN           string    `db:"isbn" json:"isbn" validate:"required,max=20"`
	Title          string    `db:"title" json:"title" validate:"required,max=250"`
	Subtitle       string    `db:"subtitle" json:"subtitle" validate:"max=250"`
	Author         string    `db:"author" json:"author" validate:"required,max=250"`
	Publisher      string    `db:"publisher" json:"publisher" validate:"max=250"`
	SubjectID      null.Int  `db:"subject_id" json:"subject"`
	DatePublished  core.Date `db:"date_published" json:"date_published"`
	LengthPages    int       `db:"length_pages" json:"length_pages" validate:"gte=0"`
	Edition        string    `db:"edition" json:"edition" validate:"max=50"`
	CoverImage     string    `db:"cover_image" json:"cover_image"`
	OrganizationID int       `db:"organization_id" json:"organization"`
}

type BookRead struct {
	Book
	Subject *school.Subject `json:"subject"`
}

// Copy is one physical copy of a book, shelved at an institution and lent to students.
type Copy struct {
	core.Model
	LibraryBookID   int       `db:"library_book_id" json:"library_book" validate:"required"`
	CopyNumber      string    `db:"copy_number" json:"copy_number" validate:"required,max=50"`
	Location        string    `db:"location" json:"location" validate:"max=150"`
	Row             string    `db:"shelf_row" json:"row" validate:"max=50"`
	InstitutionID   int       `db:"institution_id" json:"institution" validate:"required"`
	CurrentLenderID null.Int  `db:"current_lender_id" json:"current_lender"`
	CheckOutDate    core.Date `db:"check_out_date" json:"check_out_date"`
	DueDate         core.Date `db:"due_date" json:"due_date"`
	CheckInDate     core.Date `db:"check_in_date" json:"check_in_date"`
	Status          string    `db:"status" json:"status" validate:"omitempty,oneof=available checked_out"`
}

type CopyRead struct {
	Copy
	LibraryBook   *Book               `json:"library_book"`
	Institution   *tenant.Institution `json:"institution"`
	CurrentLender *people.Student     `json:"current_lender"`
}

type BookFilter struct {
	Search  string `query:"search"`
	Title   string `query:"title"`
	ISBN    string `query:"isbn"`
	Author  string `query:"author"`
	Subject string `query:"subject"`
}

func (f BookFilter) Where() sq.Sqlizer {
	return query.All(
		query.AnyContains(f.Search, "title", "subtitle", "author"),
		query.Contains("title", f.Title),
		query.Contains("isbn", f.ISBN),
		query.Contains("author", f.Author),
		query.ID("subject_id", f.Subject),
	)
}

type CopyFilter struct {
	LibraryBook   string `query:"library_book"`
	Institution   string `query:"institution"`
	Status        string `query:"status"`
	CurrentLender string `query:"current_lender"`
}

func (f CopyFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("library_book_id", f.LibraryBook),
		query.ID("institution_id", f.Institution),
		query.Text("status", f.Status),
		query.ID("current_lender_id", f.CurrentLender),
	)
}

// Report sums up the copies of the caller's institutions.
type Report struct {
	TotalCopies int `json:"total_copies"`
	CheckedOut  int `json:"total_checked_out_books"`
	Available   int `json:"total_available_books"`
	Overdue     int `json:"total_overdue_books"`
}

// DailyReport counts the copies checked out and in on one day.
type DailyReport struct {
	Date       string `json:"date"`
	CheckedOut int    `json:"check_out_count"`
	CheckedIn  int    `json:"check_in_count"`
}
