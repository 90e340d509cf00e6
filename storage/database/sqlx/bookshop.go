package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/bookshop"
	"github.com/trezcool/askante/core/query"
)

var (
	BooksMeta = Meta{Entity: "Book", Table: "books", Scope: query.ByPublisher("publisher_id")}

	// purchases are visible to their buyer, the buyer's school and the book's publisher
	BookPurchasesMeta = Meta{Entity: "Book purchase", Table: "book_purchases", Scope: query.AnyOf(
		query.Through("student_id", "students", query.AnyOf(
			query.ByUser("user_id"),
			query.ByInstitution("institution_id"),
		)),
		query.Through("book_id", "books", query.ByPublisher("publisher_id")),
	)}
)

var bookColumns = []string{
	"name", "subject_id", "isbn_number", "description", "author", "publisher_id",
	"price", "level_id", "grade_id", "image", "book_url", "unit_sold",
}

func NewBookshopStores(db core.DB) bookshop.Stores {
	bookRefs := []Ref{
		{Column: "subject_id", To: SubjectsMeta},
		{Column: "publisher_id", To: PublishersMeta},
		{Column: "level_id", To: LevelsMeta},
		{Column: "grade_id", To: GradesMeta},
	}
	return bookshop.Stores{
		Publishers: NewStore(db, Table[bookshop.Publisher]{
			Meta:     PublishersMeta,
			Columns:  []string{"name", "website", "email", "is_active"},
			Ordering: nameOrdering,
		}),
		PublisherUsers: NewStore(db, Table[bookshop.PublisherUser]{
			Meta: Meta{Entity: "Publisher user", Table: "publisher_users", Scope: query.ByPublisher("publisher_id")},
			Columns: []string{
				"first_name", "last_name", "email", "invitation_code", "publisher_id", "user_id",
			},
			Refs: []Ref{{Column: "publisher_id", To: PublishersMeta}},
		}),
		Books: &bookStore{
			db: db,
			Store: NewStore(db, Table[bookshop.Book]{
				Meta:    BooksMeta,
				Columns: bookColumns,
				Refs:    bookRefs,
			}),
		},
		Catalogue: NewStore(db, Table[bookshop.Book]{
			Meta:    Meta{Entity: "Book", Table: "books", Scope: query.Public()},
			Columns: bookColumns,
			Refs:    bookRefs,
		}),
		Purchases: NewStore(db, Table[bookshop.BookPurchase]{
			Meta: BookPurchasesMeta,
			Columns: []string{
				"book_id", "student_id", "total_price", "purchase_date", "book_url", "payment_gateway_token",
			},
			Refs: []Ref{
				{Column: "book_id", To: BooksMeta},
				{Column: "student_id", To: StudentsMeta},
			},
		}),
	}
}

type bookStore struct {
	core.Store[bookshop.Book]
	db core.DB
}

var _ bookshop.BookStore = (*bookStore)(nil) // interface compliance check

func (s *bookStore) AddSold(ctx context.Context, bookID, n int, exec ...core.DBExecutor) error {
	q, args, err := psql.Update("books").
		Set("unit_sold", sq.Expr("unit_sold + ?", n)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": bookID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building sale count")
	}
	res, err := core.Exec(s.db, exec).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "counting sale")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return core.NewNotFoundError("Book")
	}
	return nil
}
