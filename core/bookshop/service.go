package bookshop

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
)

// SalesDays is the length of a publisher's daily sales history.
const SalesDays = 10

const defaultCurrency = "ZAR"

var ErrPublisherInactive = errors.New("Publisher account not activated. Contact your administrator")

type (
	// BookStore is the publisher-scoped store of books.
	BookStore interface {
		core.Store[Book]

		// AddSold increments the sales counter of a book.
		AddSold(ctx context.Context, bookID, n int, exec ...core.DBExecutor) error
	}

	Stores struct {
		Publishers     core.Store[Publisher]
		PublisherUsers core.Store[PublisherUser]
		Books          BookStore
		Catalogue      core.Store[Book] // every book, readable by buyers
		Purchases      core.Store[BookPurchase]
	}

	Loaders struct {
		Subjects core.Loader[school.Subject]
		Levels   core.Loader[school.Level]
		Grades   core.Loader[school.Grade]
		Students core.Loader[people.Student]
	}

	Profiles interface {
		StudentByUser(ctx context.Context, userID int) (people.Student, error)
	}

	Service struct {
		Publishers     *core.CRUD[Publisher, Publisher]
		PublisherUsers *core.CRUD[PublisherUser, PublisherUserRead]
		Books          *core.CRUD[Book, BookRead]
		Purchases      *core.CRUD[BookPurchase, BookPurchaseRead]

		catalogue *core.CRUD[Book, BookRead]
		db        core.DB
		stores    Stores
		loaders   Loaders
		profiles  Profiles
		gateway   core.PaymentGateway
		mailSvc   core.EmailService
		conf      *core.Config
		now       func() time.Time
	}
)

func NewService(
	db core.DB,
	stores Stores,
	loaders Loaders,
	profiles Profiles,
	gateway core.PaymentGateway,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	svc := &Service{
		Publishers: core.NewCRUD("Publisher", stores.Publishers),
		db:         db,
		stores:     stores,
		loaders:    loaders,
		profiles:   profiles,
		gateway:    gateway,
		mailSvc:    mailSvc,
		conf:       conf,
		now:        time.Now,
	}
	svc.Publishers.Prepare = func(_ context.Context, _ query.Scope, v, existing *Publisher, _ core.DBExecutor) error {
		if existing == nil {
			v.IsActive = true
		}
		return nil
	}
	svc.PublisherUsers = &core.CRUD[PublisherUser, PublisherUserRead]{
		Entity:  "Publisher user",
		Store:   stores.PublisherUsers,
		Prepare: svc.preparePublisherUser,
		Saved: func(_ context.Context, _ query.Scope, v, existing *PublisherUser, _ core.DBExecutor) error {
			if existing == nil {
				svc.mailSvc.SendMessages(user.InvitationMessage(
					svc.conf.FrontendBaseURL, v.Email, v.Name(), user.InvitePublisher, v.InvitationCode.String,
				))
			}
			return nil
		},
		Expand: svc.expandPublisherUsers,
	}
	svc.Books = &core.CRUD[Book, BookRead]{
		Entity: "Book",
		Store:  stores.Books,
		Prepare: func(_ context.Context, scope query.Scope, v, existing *Book, _ core.DBExecutor) error {
			if existing != nil {
				v.PublisherID = existing.PublisherID
				v.UnitSold = existing.UnitSold
				return nil
			}
			v.UnitSold = 0
			return stampPublisher(scope, &v.PublisherID)
		},
		Expand: svc.expandBooks,
	}
	svc.catalogue = &core.CRUD[Book, BookRead]{
		Entity: "Book",
		Store:  stores.Books,
		Reader: stores.Catalogue,
		Expand: svc.expandBooks,
	}
	svc.Purchases = &core.CRUD[BookPurchase, BookPurchaseRead]{
		Entity: "Book purchase",
		Store:  stores.Purchases,
		Expand: svc.expandPurchases,
	}
	return svc
}

// stampPublisher sets the publisher of a publisher-owned row from the scope.
// Superusers keep the publisher given in the payload, which must be set.
func stampPublisher(scope query.Scope, publisherID *int) error {
	if scope.Superuser {
		if *publisherID <= 0 {
			return core.NewFieldError("publisher", "this field is required")
		}
		return nil
	}
	if scope.PublisherID <= 0 {
		return core.ErrForbidden
	}
	*publisherID = scope.PublisherID
	return nil
}

func (svc *Service) preparePublisherUser(_ context.Context, scope query.Scope, v, existing *PublisherUser, _ core.DBExecutor) error {
	if existing != nil {
		v.PublisherID = existing.PublisherID
		v.InvitationCode = existing.InvitationCode
		v.UserID = existing.UserID
		return nil
	}
	v.UserID.Valid = false
	v.InvitationCode.SetValid(user.NewInvitationCode())
	return stampPublisher(scope, &v.PublisherID)
}

// Catalogue lists the books on sale, without their download links.
// PublisherStatus returns the publisher of an authenticated user, or ErrPublisherInactive.
func (svc *Service) PublisherStatus(ctx context.Context, publisherID int) (Publisher, error) {
	pub, err := svc.stores.Publishers.Get(ctx, query.Global(), publisherID)
	if err != nil {
		return pub, err
	}
	if !pub.IsActive {
		return pub, core.NewValidationError(ErrPublisherInactive)
	}
	return pub, nil
}

func (svc *Service) Catalogue(ctx context.Context, scope query.Scope, params core.ListParams) (core.Page[CatalogueBook], error) {
	page, err := svc.catalogue.List(ctx, scope, params)
	if err != nil {
		return core.Page[CatalogueBook]{}, err
	}
	res := core.Page[CatalogueBook]{Count: page.Count, Results: make([]CatalogueBook, len(page.Results))}
	for i, b := range page.Results {
		res.Results[i] = b.Catalogue()
	}
	return res, nil
}

// Purchase charges the card of the student profile of a user for a book, then records the purchase.
// A declined charge records nothing.
func (svc *Service) Purchase(ctx context.Context, scope query.Scope, userID int, req Purchase) (BookPurchaseRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return BookPurchaseRead{}, err
	}
	book, err := svc.catalogue.Load(ctx, scope, req.Book)
	if err != nil {
		return BookPurchaseRead{}, err
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}
	if _, err = svc.gateway.Charge(ctx, core.ChargeRequest{
		Token:         req.Token,
		AmountInCents: tenant.Cents(book.Price),
		Currency:      req.Currency,
	}); err != nil {
		return BookPurchaseRead{}, err
	}

	p := BookPurchase{
		BookID:              book.ID,
		StudentID:           st.ID,
		TotalPrice:          book.Price,
		PurchaseDate:        svc.now().UTC(),
		BookURL:             book.BookURL,
		PaymentGatewayToken: req.Token,
	}
	// buyer and book are resolved already: the purchase is recorded outside the caller's scope
	err = svc.inTx(ctx, func(tx core.DBExecutor) error {
		if err := svc.stores.Purchases.Create(ctx, query.Global(), &p, tx); err != nil {
			return errors.Wrap(err, "recording purchase")
		}
		return errors.Wrap(svc.stores.Books.AddSold(ctx, book.ID, 1, tx), "counting sale")
	})
	if err != nil {
		return BookPurchaseRead{}, err
	}
	items, err := svc.expandPurchases(ctx, []BookPurchase{p})
	if err != nil {
		return BookPurchaseRead{}, err
	}
	return items[0], nil
}

func (svc *Service) inTx(ctx context.Context, fn func(tx core.DBExecutor) error) error {
	if svc.db == nil {
		return fn(nil)
	}
	return core.WithTx(ctx, svc.db, fn)
}

// StudentPurchases lists the books bought by the student profile of a user.
func (svc *Service) StudentPurchases(ctx context.Context, scope query.Scope, userID int, f PurchaseFilter) ([]BookPurchaseRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	page, err := svc.Purchases.List(ctx, scope, core.ListParams{
		Where: query.All(sq.Eq{"student_id": st.ID}, f.Where()),
		All:   true,
	})
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// Stats counts and sums the purchases matching f.
func (svc *Service) Stats(ctx context.Context, scope query.Scope, f PurchaseFilter) (Stats, error) {
	where := f.Where()
	n, err := svc.stores.Purchases.Count(ctx, scope, where)
	if err != nil {
		return Stats{}, err
	}
	sum, err := svc.stores.Purchases.Sum(ctx, scope, "total_price", where)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalBooksSold: n, TotalAmount: sum}, nil
}

// DailySales are the sales of each of the last days, oldest first.
func (svc *Service) DailySales(ctx context.Context, scope query.Scope) ([]DaySales, error) {
	today := query.Day(svc.now())
	res := make([]DaySales, 0, SalesDays)
	for i := SalesDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		onDay := query.OnDay("purchase_date", day)
		n, err := svc.stores.Purchases.Count(ctx, scope, onDay)
		if err != nil {
			return nil, err
		}
		sum, err := svc.stores.Purchases.Sum(ctx, scope, "total_price", onDay)
		if err != nil {
			return nil, err
		}
		res = append(res, DaySales{Date: day.Format(core.DateLayout), Sales: sum, Count: n})
	}
	return res, nil
}

func (svc *Service) expandPublisherUsers(ctx context.Context, items []PublisherUser) ([]PublisherUserRead, error) {
	pubs, err := svc.stores.Publishers.GetMany(ctx, core.IDs(items, func(pu PublisherUser) int { return pu.PublisherID }))
	if err != nil {
		return nil, err
	}
	res := make([]PublisherUserRead, len(items))
	for i, it := range items {
		res[i] = PublisherUserRead{PublisherUser: it, Publisher: core.Ref(pubs, it.PublisherID)}
	}
	return res, nil
}

func (svc *Service) expandBooks(ctx context.Context, items []Book) ([]BookRead, error) {
	subjects, err := svc.loaders.Subjects.GetMany(ctx, core.IDs(items, func(b Book) int { return b.SubjectID.Int }))
	if err != nil {
		return nil, err
	}
	pubs, err := svc.stores.Publishers.GetMany(ctx, core.IDs(items, func(b Book) int { return b.PublisherID }))
	if err != nil {
		return nil, err
	}
	levels, err := svc.loaders.Levels.GetMany(ctx, core.IDs(items, func(b Book) int { return b.LevelID.Int }))
	if err != nil {
		return nil, err
	}
	grades, err := svc.loaders.Grades.GetMany(ctx, core.IDs(items, func(b Book) int { return b.GradeID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]BookRead, len(items))
	for i, it := range items {
		res[i] = BookRead{
			Book:      it,
			Subject:   core.Ref(subjects, it.SubjectID.Int),
			Publisher: core.Ref(pubs, it.PublisherID),
			Level:     core.Ref(levels, it.LevelID.Int),
			Grade:     core.Ref(grades, it.GradeID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandPurchases(ctx context.Context, items []BookPurchase) ([]BookPurchaseRead, error) {
	books, err := svc.stores.Catalogue.GetMany(ctx, core.IDs(items, func(p BookPurchase) int { return p.BookID }))
	if err != nil {
		return nil, err
	}
	students, err := svc.loaders.Students.GetMany(ctx, core.IDs(items, func(p BookPurchase) int { return p.StudentID }))
	if err != nil {
		return nil, err
	}
	res := make([]BookPurchaseRead, len(items))
	for i, it := range items {
		res[i] = BookPurchaseRead{
			BookPurchase: it,
			Book:         core.Ref(books, it.BookID),
			Student:      core.Ref(students, it.StudentID),
		}
	}
	return res, nil
}
