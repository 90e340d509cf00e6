package bookshop

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
)

type Publisher struct {
	core.Model
	Name     string `db:"name" json:"name" validate:"required,max=250"`
	Website  string `db:"website" json:"website" validate:"omitempty,url,max=250"`
	Email    string `db:"email" json:"email" validate:"omitempty,email,max=254"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// PublisherUser is a member of a publisher, invited by email to register an account.
type PublisherUser struct {
	core.Model
	FirstName      string      `db:"first_name" json:"first_name" validate:"required,max=150"`
	LastName       string      `db:"last_name" json:"last_name" validate:"required,max=150"`
	Email          string      `db:"email" json:"email" validate:"required,email,max=254"`
	InvitationCode null.String `db:"invitation_code" json:"-"`
	PublisherID    int         `db:"publisher_id" json:"publisher"`
	UserID         null.Int    `db:"user_id" json:"user"`
}

func (pu PublisherUser) Name() string {
	return pu.FirstName + " " + pu.LastName
}

type PublisherUserRead struct {
	PublisherUser
	Publisher *Publisher `json:"publisher"`
}

type Book struct {
	core.Model
	Name        string   `db:"name" json:"name" validate:"required,max=250"`
	SubjectID   null.Int `db:"subject_id" json:"subject"`
	ISBNNumber  string   `db:"isbn_number" json:"isbn_number" validate:"max=20"`
	Description string   `db:"description" json:"description"`
	Author      string   `db:"author" json:"author" validate:"max=250"`
	PublisherID int      `db:"publisher_id" json:"publisher"`
	Price       float64  `db:"price" json:"price" validate:"gte=0"`
	LevelID     null.Int `db:"level_id" json:"level"`
	GradeID     null.Int `db:"grade_id" json:"grade"`
	Image       string   `db:"image" json:"image"`
	BookURL     string   `db:"book_url" json:"book_url" validate:"omitempty,url"`
	UnitSold    int      `db:"unit_sold" json:"unit_sold"`
}

// BookRead is the publisher's view of a book.
type BookRead struct {
	Book
	Subject   *school.Subject `json:"subject"`
	Publisher *Publisher      `json:"publisher"`
	Level     *school.Level   `json:"level"`
	Grade     *school.Grade   `json:"grade"`
}

// CatalogueBook is a book as buyers see it: without its download link or sales.
type CatalogueBook struct {
	core.Model
	Name        string          `json:"name"`
	ISBNNumber  string          `json:"isbn_number"`
	Description string          `json:"description"`
	Author      string          `json:"author"`
	Price       float64         `json:"price"`
	Image       string          `json:"image"`
	Subject     *school.Subject `json:"subject"`
	Publisher   *Publisher      `json:"publisher"`
	Level       *school.Level   `json:"level"`
	Grade       *school.Grade   `json:"grade"`
}

func (b BookRead) Catalogue() CatalogueBook {
	return CatalogueBook{
		Model:       b.Model,
		Name:        b.Name,
		ISBNNumber:  b.ISBNNumber,
		Description: b.Description,
		Author:      b.Author,
		Price:       b.Price,
		Image:       b.Image,
		Subject:     b.Subject,
		Publisher:   b.Publisher,
		Level:       b.Level,
		Grade:       b.Grade,
	}
}

type BookPurchase struct {
	core.Model
	BookID              int       `db:"book_id" json:"book"`
	StudentID           int       `db:"student_id" json:"student"`
	TotalPrice          float64   `db:"total_price" json:"total_price"`
	PurchaseDate        time.Time `db:"purchase_date" json:"purchase_date"`
	BookURL             string    `db:"book_url" json:"book_url"`
	PaymentGatewayToken string    `db:"payment_gateway_token" json:"-"`
}

type BookPurchaseRead struct {
	BookPurchase
	Book    *Book           `json:"book"`
	Student *people.Student `json:"student"`
}

// Purchase is a student's card payment for a book.
type Purchase struct {
	Book     int    `json:"book" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Currency string `json:"currency"`
}

// Stats sums up the sales of a period.
type Stats struct {
	TotalBooksSold int     `json:"total_books_sold"`
	TotalAmount    float64 `json:"total_amount"`
}

// DaySales are the sales of one day.
type DaySales struct {
	Date  string  `json:"date"`
	Sales float64 `json:"sales"`
	Count int     `json:"count"`
}

type PublisherFilter struct {
	Search string `query:"search"`
}

func (f PublisherFilter) Where() sq.Sqlizer {
	return query.AnyContains(f.Search, "name", "email")
}

type PublisherUserFilter struct {
	Publisher string `query:"publisher"`
	Search    string `query:"search"`
}

func (f PublisherUserFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("publisher_id", f.Publisher),
		query.NameSearch("first_name", "last_name", f.Search),
	)
}

// BookFilter narrows both the publisher's listing and the public catalogue.
type BookFilter struct {
	SearchTerm string `query:"search_term"`
	Grade      string `query:"grade"`
	Level      string `query:"level"`
	ISBN       string `query:"isbn"`
	Subject    string `query:"subject"`
	Publisher  string `query:"publisher"`
}

func (f BookFilter) Where() sq.Sqlizer {
	return query.All(
		query.Contains("name", f.SearchTerm),
		query.ID("grade_id", f.Grade),
		query.ID("level_id", f.Level),
		query.Text("isbn_number", f.ISBN),
		query.ID("subject_id", f.Subject),
		query.ID("publisher_id", f.Publisher),
	)
}

// PurchaseFilter matches purchases by their book's attributes and by purchase date.
type PurchaseFilter struct {
	Book      string `query:"book"`
	Publisher string `query:"publisher"`
	Level     string `query:"level"`
	Grade     string `query:"grade"`
	Subject   string `query:"subject"`
	ISBN      string `query:"isbn"`
	Start     string `query:"start"`
	End       string `query:"end"`
}

func (f PurchaseFilter) Where() sq.Sqlizer {
	return query.All(
		query.ID("book_id", f.Book),
		query.Sub("book_id", "books", query.All(
			query.ID("publisher_id", f.Publisher),
			query.ID("level_id", f.Level),
			query.ID("grade_id", f.Grade),
			query.ID("subject_id", f.Subject),
			query.Text("isbn_number", f.ISBN),
		)),
		query.DateRange("purchase_date", f.Start, f.End),
	)
}
