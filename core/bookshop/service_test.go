package bookshop

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

type books struct {
	*inmemdb.Store[Book]
}

func (b books) AddSold(ctx context.Context, bookID, n int, _ ...core.DBExecutor) error {
	bk, err := b.Get(ctx, query.Global(), bookID)
	if err != nil {
		return err
	}
	bk.UnitSold += n
	return b.Update(ctx, query.Global(), &bk)
}

type gateway struct {
	requests []core.ChargeRequest
	err      error
}

func (g *gateway) Charge(_ context.Context, req core.ChargeRequest) (core.ChargeResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return core.ChargeResult{}, g.err
	}
	return core.ChargeResult{ID: "ch_1", Status: "successful"}, nil
}

type mailer struct {
	sent []*core.EmailMessage
}

func (m *mailer) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

type profiles map[int]people.Student

func (p profiles) StudentByUser(_ context.Context, userID int) (people.Student, error) {
	st, ok := p[userID]
	if !ok {
		return st, core.NewNotFoundError("Student")
	}
	return st, nil
}

type fixture struct {
	svc       *Service
	books     *inmemdb.Store[Book]
	purchases *inmemdb.Store[BookPurchase]
	gateway   *gateway
	mailer    *mailer
}

var (
	now            = time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)
	publisherScope = query.Scope{UserID: 5, PublisherID: 3}
	studentScope   = query.Scope{UserID: 42, OrganizationID: 1}
)

func newFixture(purchases ...BookPurchase) fixture {
	bookStore := inmemdb.NewStore[Book]("Book", nil,
		Book{Model: core.Model{ID: 1}, Name: "Algebra I", PublisherID: 3, Price: 19.99, BookURL: "https://books.test/algebra.pdf"},
	)
	purchaseStore := inmemdb.NewStore[BookPurchase]("Book purchase", nil, purchases...)
	fx := fixture{books: bookStore, purchases: purchaseStore, gateway: &gateway{}, mailer: &mailer{}}
	fx.svc = NewService(
		nil,
		Stores{
			Publishers: inmemdb.NewStore[Publisher]("Publisher", nil,
				Publisher{Model: core.Model{ID: 3}, Name: "Maskew", IsActive: true},
			),
			PublisherUsers: inmemdb.NewStore[PublisherUser]("Publisher user", nil),
			Books:          books{bookStore},
			Catalogue:      bookStore,
			Purchases:      purchaseStore,
		},
		Loaders{
			Subjects: inmemdb.NewStore[school.Subject]("Subject", nil),
			Levels:   inmemdb.NewStore[school.Level]("Level", nil),
			Grades:   inmemdb.NewStore[school.Grade]("Grade", nil),
			Students: inmemdb.NewStore[people.Student]("Student", nil,
				people.Student{Model: core.Model{ID: 7}, FirstName: "Ann", InstitutionID: 1},
			),
		},
		profiles{42: {Model: core.Model{ID: 7}, InstitutionID: 1}},
		fx.gateway,
		fx.mailer,
		&core.Config{FrontendBaseURL: "https://askante.net"},
	)
	fx.svc.now = func() time.Time { return now }
	return fx
}

func TestCreateBookStampsPublisher(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	b, err := fx.svc.Books.Create(ctx, publisherScope, Book{Name: "Geometry", PublisherID: 9, UnitSold: 40})
	require.NoError(t, err)
	assert.Equal(t, 3, b.PublisherID)
	assert.Zero(t, b.UnitSold)
	require.NotNil(t, b.Publisher)
	assert.Equal(t, "Maskew", b.Publisher.Name)

	_, err = fx.svc.Books.Create(ctx, studentScope, Book{Name: "Geometry"})
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = fx.svc.Books.Create(ctx, query.Global(), Book{Name: "Geometry"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInvitePublisherUser(t *testing.T) {
	fx := newFixture()
	pu, err := fx.svc.PublisherUsers.Create(context.Background(), publisherScope, PublisherUser{
		FirstName: "Jane", LastName: "Doe", Email: "jane@test.test", PublisherID: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, pu.PublisherID)
	assert.Len(t, pu.InvitationCode.String, 32)
	assert.False(t, pu.UserID.Valid)

	require.Len(t, fx.mailer.sent, 1)
	data := fx.mailer.sent[0].DynamicData()
	assert.Equal(t, "https://askante.net/register?code="+pu.InvitationCode.String+"&type=publisher", data["registration_url"])
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	p, err := fx.svc.Purchase(ctx, studentScope, 42, Purchase{Book: 1, Token: "tok_1"})
	require.NoError(t, err)
	assert.Equal(t, []core.ChargeRequest{{Token: "tok_1", AmountInCents: 1999, Currency: "ZAR"}}, fx.gateway.requests)
	assert.Equal(t, 7, p.StudentID)
	assert.Equal(t, 19.99, p.TotalPrice)
	assert.Equal(t, "https://books.test/algebra.pdf", p.BookURL)
	assert.Equal(t, now, p.PurchaseDate)
	require.NotNil(t, p.Student)
	assert.Equal(t, "Ann", p.Student.FirstName)

	require.Len(t, fx.purchases.Rows(), 1)
	assert.Equal(t, 1, fx.books.Rows()[0].UnitSold)
}

func TestPurchaseDeclined(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	fx.gateway.err = &core.UpstreamError{Service: "yoco", Status: http.StatusBadRequest, Message: "card declined"}

	_, err := fx.svc.Purchase(ctx, studentScope, 42, Purchase{Book: 1, Token: "tok_1"})
	var upErr *core.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadRequest, upErr.Status)
	assert.Empty(t, fx.purchases.Rows())
	assert.Zero(t, fx.books.Rows()[0].UnitSold)

	_, err = fx.svc.Purchase(ctx, studentScope, 42, Purchase{Book: 2, Token: "tok_1"})
	assert.True(t, core.IsNotFound(err))
	_, err = fx.svc.Purchase(ctx, studentScope, 43, Purchase{Book: 1, Token: "tok_1"})
	assert.True(t, core.IsNotFound(err))
}

func TestCatalogueHidesDownloads(t *testing.T) {
	fx := newFixture()
	page, err := fx.svc.Catalogue(context.Background(), studentScope, core.ListParams{All: true})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)

	b, err := json.Marshal(page.Results[0])
	require.NoError(t, err)
	assert.NotContains(t, string(b), "book_url")
	assert.NotContains(t, string(b), "unit_sold")
	assert.Contains(t, string(b), `"name":"Algebra I"`)
}

func TestSales(t *testing.T) {
	ctx := context.Background()
	purchase := func(id int, daysAgo int, price float64) BookPurchase {
		return BookPurchase{
			Model: core.Model{ID: id}, BookID: 1, StudentID: 7, TotalPrice: price,
			PurchaseDate: now.AddDate(0, 0, -daysAgo),
		}
	}
	fx := newFixture(purchase(1, 0, 10), purchase(2, 0, 15.5), purchase(3, 3, 20), purchase(4, 12, 99))

	sales, err := fx.svc.DailySales(ctx, publisherScope)
	require.NoError(t, err)
	require.Len(t, sales, SalesDays)
	assert.Equal(t, DaySales{Date: "2024-03-06"}, sales[0])
	assert.Equal(t, DaySales{Date: "2024-03-12", Sales: 20, Count: 1}, sales[6])
	assert.Equal(t, DaySales{Date: "2024-03-15", Sales: 25.5, Count: 2}, sales[9])

	stats, err := fx.svc.Stats(ctx, publisherScope, PurchaseFilter{})
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalBooksSold: 4, TotalAmount: 144.5}, stats)
}

func TestPurchaseFilter(t *testing.T) {
	sql, args, err := PurchaseFilter{Publisher: "3", ISBN: "978"}.Where().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "((1=1) AND book_id IN (SELECT id FROM books WHERE (publisher_id = ? AND (1=1) AND (1=1) AND (1=1) AND isbn_number = ?)) AND (1=1))", sql)
	assert.Equal(t, []interface{}{3, "978"}, args)

	sql, _, err = PurchaseFilter{}.Where().ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "SELECT")
}

func TestPublisherStatus(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	pub, err := fx.svc.PublisherStatus(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Maskew", pub.Name)

	pub.IsActive = false
	_, err = fx.svc.Publishers.Update(ctx, query.Global(), pub, pub)
	require.NoError(t, err)
	_, err = fx.svc.PublisherStatus(ctx, 3)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrPublisherInactive, verr.Err)

	_, err = fx.svc.PublisherStatus(ctx, 99)
	assert.True(t, core.IsNotFound(err))
}
