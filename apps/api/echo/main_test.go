package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/academic"
	"github.com/trezcool/askante/core/bookshop"
	"github.com/trezcool/askante/core/events"
	"github.com/trezcool/askante/core/finance"
	"github.com/trezcool/askante/core/fundamentals"
	"github.com/trezcool/askante/core/library"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/report"
	"github.com/trezcool/askante/core/resource"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
	emailsvc "github.com/trezcool/askante/services/email"
	logsvc "github.com/trezcool/askante/services/logger"
	metricsvc "github.com/trezcool/askante/services/metrics"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
)

const testPassword = "Pa$$w0rd!"

// billing keeps the unpaid invoices by organization.
type billing map[int]tenant.Invoice

func (b billing) NextDue(context.Context, time.Time, ...core.DBExecutor) (tenant.Organization, error) {
	return tenant.Organization{}, core.NewNotFoundError("Organization")
}

func (b billing) Issue(context.Context, tenant.Organization, time.Time, time.Time, ...core.DBExecutor) (bool, error) {
	return false, nil
}

func (b billing) Unpaid(_ context.Context, orgID int, _ ...core.DBExecutor) (tenant.Invoice, error) {
	inv, ok := b[orgID]
	if !ok {
		return inv, core.NewNotFoundError("Invoice")
	}
	return inv, nil
}

func (b billing) MarkPaid(_ context.Context, id int, _ ...core.DBExecutor) error {
	for org, inv := range b {
		if inv.ID == id {
			delete(b, org)
		}
	}
	return nil
}

type rateSource struct{ rate float64 }

func (s rateSource) USDToZAR(context.Context) (float64, error) { return s.rate, nil }

type objects struct{ keys []string }

func (o *objects) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	o.keys = append(o.keys, key)
	return "https://bucket.test/" + key, nil
}

// Users of the fixture
var (
	superuser = user.User{Model: core.Model{ID: 1}, Username: "root", IsSuperuser: true, IsActive: true}
	admin     = user.User{
		Model: core.Model{ID: 2}, Username: "admin", Email: "admin@askante.test", Role: user.RoleAdmin,
		OrganizationID: null.IntFrom(1), IsActive: true,
	}
	teacher = user.User{
		Model: core.Model{ID: 3}, Username: "teacher", Role: user.RoleTeacher, OrganizationID: null.IntFrom(1), IsActive: true,
	}
	student = user.User{
		Model: core.Model{ID: 4}, Username: "student", Role: user.RoleStudent, OrganizationID: null.IntFrom(2), IsActive: true,
	}
	inactive = user.User{
		Model: core.Model{ID: 5}, Username: "inactive", Role: user.RoleTeacher, OrganizationID: null.IntFrom(1),
	}
	bursar = user.User{
		Model: core.Model{ID: 6}, Username: "bursar", Role: user.RoleEmployee, SpecialRole: null.StringFrom(user.SpecialRoleBursar),
		OrganizationID: null.IntFrom(1), IsActive: true,
	}

	unpaid = tenant.Invoice{Model: core.Model{ID: 1}, OrganizationID: 1, Amount: 100}
)

type testApp struct {
	srv     *Server
	conf    *core.Config
	users   *inmemdb.UserRepository
	levels  *inmemdb.Store[school.Level]
	metrics *metricsvc.Metrics
	objects *objects
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		AppName:                   "Askante",
		TestMode:                  true,
		SecretKey:                 "secret",
		PasswordResetTimeoutDelta: time.Hour,
		Server:                    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	withPassword := admin
	require.NoError(t, withPassword.SetPassword(testPassword))
	users := inmemdb.NewUserRepository(superuser, withPassword, teacher, student, inactive, bursar)
	usrSvc := user.NewServiceMock(nil, users, nil, emailsvc.NewConsoleServiceMock(conf), conf)

	orgs := inmemdb.NewStore("Organization", func(o tenant.Organization) int { return o.ID },
		tenant.Organization{Model: core.Model{ID: 1}, Name: "Acme Schools", PaymentFrequency: 1, IsActive: true},
		tenant.Organization{Model: core.Model{ID: 2}, Name: "Closed Schools", PaymentFrequency: 1},
	)
	institutions := inmemdb.NewStore("Institution", func(i tenant.Institution) int { return i.OrganizationID },
		tenant.Institution{Model: core.Model{ID: 1}, Name: "Acme High", OrganizationID: 1},
	)
	tenants := tenant.NewService(nil, tenant.Stores{
		Organizations: orgs,
		Institutions:  institutions,
		Invoices:      inmemdb.NewStore("Invoice", func(i tenant.Invoice) int { return i.OrganizationID }, unpaid),
		Billing:       billing{1: unpaid},
	}, usrSvc, nil)

	levels := make([]school.Level, 0, 12)
	for i := 1; i <= 12; i++ {
		levels = append(levels, school.Level{Model: core.Model{ID: i}, Name: "Level " + string(rune('A'-1+i))})
	}
	levelStore := inmemdb.NewStore[school.Level]("Level", nil, levels...)

	objs := new(objects)
	m := metricsvc.New("askante")
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	srv := NewServer(ServerDeps{
		Services: Services{
			Users:    usrSvc,
			Tenants:  tenants,
			School:   school.NewService(school.Stores{Levels: levelStore}, institutions),
			People:   people.NewService(nil, people.Stores{}, people.Loaders{}, nil, conf),
			Academic: academic.NewService(nil, academic.Stores{
				AttendanceGroups: inmemdb.NewStore[academic.AttendanceGroup]("Attendance group", nil,
					academic.AttendanceGroup{Model: core.Model{ID: 1}, Name: "Late", RecordLateTime: true},
					academic.AttendanceGroup{Model: core.Model{ID: 2}, Name: "LATE arrival", RecordLateTime: true},
					academic.AttendanceGroup{Model: core.Model{ID: 3}, Name: "Present"},
				),
			}, academic.Loaders{}, nil, nil),
			Finance:  finance.NewService(nil, finance.Stores{}, finance.Loaders{}),
			Library:  library.NewService(library.Stores{}, library.Loaders{}, nil),
			Bookshop: bookshop.NewService(nil, bookshop.Stores{
				Publishers: inmemdb.NewStore[bookshop.Publisher]("Publisher", nil),
			}, bookshop.Loaders{}, nil, nil, nil, conf),
			Events:    events.NewService(nil, events.Stores{}, events.Loaders{}),
			Resources: resource.NewService(resource.Stores{}, resource.Loaders{}),
			Reports:   report.NewService(institutions, report.Aggregates{}, report.Listings{}, nil, nil),
			Fundamentals: fundamentals.NewService(
				inmemdb.NewStore[fundamentals.ZarRate]("ZAR rate", nil), rateSource{rate: 18.4567}, objs,
			),
		},
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Metrics:        m,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return &testApp{srv: srv, conf: conf, users: users, levels: levelStore, metrics: m, objects: objs}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.srv.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, conf.Server.JWTExpirationDelta), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func errBody(t *testing.T, msg string, fields ...string) []byte {
	resp := errorResponse{Err: true, Msg: msg}
	if len(fields) > 0 {
		resp.Errors = make(map[string]string, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			resp.Errors[fields[i]] = fields[i+1]
		}
	}
	return marchallObj(t, resp)
}

func successBody(t *testing.T, results interface{}) []byte {
	return marchallObj(t, response{Msg: successMsg, Results: results})
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
