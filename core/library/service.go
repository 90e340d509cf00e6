package library

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

// DailyReportDays is the length of the daily lending history.
const DailyReportDays = 10

type (
	Stores struct {
		Books  core.Store[Book]
		Copies core.Store[Copy]
	}

	Loaders struct {
		Subjects     core.Loader[school.Subject]
		Institutions core.Loader[tenant.Institution]
		Students     core.Loader[people.Student]
	}

	// Profiles finds the student profile of an authenticated user.
	Profiles interface {
		StudentByUser(ctx context.Context, userID int) (people.Student, error)
	}

	Service struct {
		Books  *core.CRUD[Book, BookRead]
		Copies *core.CRUD[Copy, CopyRead]

		stores   Stores
		loaders  Loaders
		profiles Profiles
		now      func() time.Time
	}
)

func NewService(stores Stores, loaders Loaders, profiles Profiles) *Service {
	svc := &Service{stores: stores, loaders: loaders, profiles: profiles, now: time.Now}
	svc.Books = &core.CRUD[Book, BookRead]{
		Entity: "Library book",
		Store:  stores.Books,
		Prepare: func(_ context.Context, scope query.Scope, v, existing *Book, _ core.DBExecutor) error {
			if existing != nil {
				v.OrganizationID = existing.OrganizationID
				return nil
			}
			return core.StampOrganization(scope, &v.OrganizationID)
		},
		Expand: svc.expandBooks,
	}
	svc.Copies = &core.CRUD[Copy, CopyRead]{
		Entity:  "Library book copy",
		Store:   stores.Copies,
		Prepare: svc.prepareCopy,
		Expand:  svc.expandCopies,
	}
	return svc
}

// prepareCopy keeps the lending columns of a copy consistent with its lender:
// lending it checks it out today, taking it back checks it in today.
func (svc *Service) prepareCopy(_ context.Context, _ query.Scope, v, existing *Copy, _ core.DBExecutor) error {
	today := core.DateFrom(svc.now())
	lent := v.CurrentLenderID.Valid && v.CurrentLenderID.Int > 0
	var wasLentTo int
	if existing != nil && existing.CurrentLenderID.Valid {
		wasLentTo = existing.CurrentLenderID.Int
	}

	switch {
	case lent && wasLentTo != v.CurrentLenderID.Int:
		v.Status = StatusCheckedOut
		if !v.CheckOutDate.Valid || (existing != nil && v.CheckOutDate.Time.Equal(existing.CheckOutDate.Time)) {
			v.CheckOutDate = today
		}
		v.CheckInDate = core.Date{}
	case lent:
		v.Status = StatusCheckedOut
	case wasLentTo != 0:
		v.CurrentLenderID = null.Int{}
		v.Status = StatusAvailable
		v.CheckInDate = today
	default:
		v.Status = StatusAvailable
	}

	if lent && v.DueDate.Valid && v.DueDate.Time.Before(v.CheckOutDate.Time) {
		return core.NewFieldError("due_date", "must not be before the check out date")
	}
	return nil
}

// StudentLending lists the copies currently lent to the student profile of a user.
func (svc *Service) StudentLending(ctx context.Context, scope query.Scope, userID int) ([]CopyRead, error) {
	st, err := svc.profiles.StudentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	page, err := svc.Copies.List(ctx, scope, core.ListParams{Where: sq.Eq{"current_lender_id": st.ID}, All: true})
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// Report counts the copies visible in scope by lending state.
func (svc *Service) Report(ctx context.Context, scope query.Scope) (Report, error) {
	var (
		rep   Report
		today = query.Day(svc.now())
		lent  = sq.NotEq{"current_lender_id": nil}
	)
	counts := []struct {
		dest  *int
		where sq.Sqlizer
	}{
		{&rep.TotalCopies, query.Identity()},
		{&rep.CheckedOut, lent},
		{&rep.Available, sq.Eq{"current_lender_id": nil}},
		{&rep.Overdue, query.All(lent, sq.Lt{"due_date": today})},
	}
	for _, c := range counts {
		n, err := svc.stores.Copies.Count(ctx, scope, c.where)
		if err != nil {
			return rep, err
		}
		*c.dest = n
	}
	return rep, nil
}

// DailyReports counts the check outs and check ins of each of the last days, newest first.
func (svc *Service) DailyReports(ctx context.Context, scope query.Scope) ([]DailyReport, error) {
	today := query.Day(svc.now())
	res := make([]DailyReport, 0, DailyReportDays)
	for i := 0; i < DailyReportDays; i++ {
		day := today.AddDate(0, 0, -i)
		out, err := svc.stores.Copies.Count(ctx, scope, query.OnDay("check_out_date", day))
		if err != nil {
			return nil, err
		}
		in, err := svc.stores.Copies.Count(ctx, scope, query.OnDay("check_in_date", day))
		if err != nil {
			return nil, err
		}
		res = append(res, DailyReport{Date: day.Format(core.DateLayout), CheckedOut: out, CheckedIn: in})
	}
	return res, nil
}

func (svc *Service) expandBooks(ctx context.Context, items []Book) ([]BookRead, error) {
	subjects, err := svc.loaders.Subjects.GetMany(ctx, core.IDs(items, func(b Book) int { return b.SubjectID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]BookRead, len(items))
	for i, it := range items {
		res[i] = BookRead{Book: it, Subject: core.Ref(subjects, it.SubjectID.Int)}
	}
	return res, nil
}

func (svc *Service) expandCopies(ctx context.Context, items []Copy) ([]CopyRead, error) {
	books, err := svc.stores.Books.GetMany(ctx, core.IDs(items, func(c Copy) int { return c.LibraryBookID }))
	if err != nil {
		return nil, err
	}
	insts, err := svc.loaders.Institutions.GetMany(ctx, core.IDs(items, func(c Copy) int { return c.InstitutionID }))
	if err != nil {
		return nil, err
	}
	students, err := svc.loaders.Students.GetMany(ctx, core.IDs(items, func(c Copy) int { return c.CurrentLenderID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]CopyRead, len(items))
	for i, it := range items {
		res[i] = CopyRead{
			Copy:          it,
			LibraryBook:   core.Ref(books, it.LibraryBookID),
			Institution:   core.Ref(insts, it.InstitutionID),
			CurrentLender: core.Ref(students, it.CurrentLenderID.Int),
		}
	}
	return res, nil
}
