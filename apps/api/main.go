package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/askante/apps/api/echo"
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
	paymentsvc "github.com/trezcool/askante/services/payment"
	ratesvc "github.com/trezcool/askante/services/rates"
	storagesvc "github.com/trezcool/askante/services/storage"
	"github.com/trezcool/askante/storage/database"
	sqlxrepos "github.com/trezcool/askante/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up external services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	gateway := paymentsvc.NewYocoGateway(conf)
	objects, err := storagesvc.NewS3Store(context.Background(), conf.Storage)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}
	metrics := metricsvc.New("askante")

	services := newServices(db, conf, mailSvc, gateway, objects)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus exposition of the API and invoice scheduler.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Invoice Scheduler

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()

	scheduler := tenant.NewScheduler(services.Tenants, conf.Server.InvoiceInterval, logger)
	scheduler.OnRun = metrics.ObserveInvoiceRun
	go scheduler.Run(schedCtx)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Services:   services,
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			Metrics:    metrics,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		stopScheduler()

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// newServices builds every domain service over the postgres stores.
func newServices(
	db *sqlx.DB,
	conf *core.Config,
	mailSvc core.EmailService,
	gateway core.PaymentGateway,
	objects fundamentals.ObjectStore,
) echoapi.Services {
	users := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(db, users, sqlxrepos.NewInvitationRepository(db), mailSvc, conf)

	tenantStores := sqlxrepos.NewTenantStores(db)
	schoolStores := sqlxrepos.NewSchoolStores(db)
	peopleStores := sqlxrepos.NewPeopleStores(db)
	academicStores := sqlxrepos.NewAcademicStores(db)
	financeStores := sqlxrepos.NewFinanceStores(db)
	libraryStores := sqlxrepos.NewLibraryStores(db)
	bookshopStores := sqlxrepos.NewBookshopStores(db)
	eventStores := sqlxrepos.NewEventStores(db)
	resourceStores := sqlxrepos.NewResourceStores(db)

	institutions := tenantStores.Institutions

	schoolSvc := school.NewService(schoolStores, institutions)
	peopleSvc := people.NewService(db, peopleStores, people.Loaders{
		Institutions: institutions,
		Grades:       schoolStores.Grades,
	}, mailSvc, conf)

	academicSvc := academic.NewService(db, academicStores, academic.Loaders{
		Institutions:  institutions,
		Grades:        schoolStores.Grades,
		Subjects:      schoolStores.Subjects,
		Terms:         schoolStores.Terms,
		AcademicYears: schoolStores.AcademicYears,
		Employees:     peopleStores.Employees,
		Users:         users,
		Students:      peopleStores.Students,
	}, peopleSvc, schoolSvc)

	financeSvc := finance.NewService(db, financeStores, finance.Loaders{
		Students:     peopleStores.Students,
		Institutions: institutions,
		Terms:        schoolStores.Terms,
	})

	return echoapi.Services{
		Users:    usrSvc,
		Tenants:  tenant.NewService(db, tenantStores, usrSvc, gateway),
		School:   schoolSvc,
		People:   peopleSvc,
		Academic: academicSvc,
		Finance:  financeSvc,
		Library: library.NewService(libraryStores, library.Loaders{
			Subjects:     schoolStores.Subjects,
			Institutions: institutions,
			Students:     peopleStores.Students,
		}, peopleSvc),
		Bookshop: bookshop.NewService(db, bookshopStores, bookshop.Loaders{
			Subjects: schoolStores.Subjects,
			Levels:   schoolStores.Levels,
			Grades:   schoolStores.Grades,
			Students: peopleStores.Students,
		}, peopleSvc, gateway, mailSvc, conf),
		Events: events.NewService(db, eventStores, events.Loaders{
			Terms:        schoolStores.Terms,
			Grades:       schoolStores.Grades,
			Institutions: institutions,
			Employees:    peopleStores.Employees,
			Students:     peopleStores.Students,
		}),
		Resources: resource.NewService(resourceStores, resource.Loaders{
			Grades:   schoolStores.Grades,
			Subjects: schoolStores.Subjects,
			Levels:   schoolStores.Levels,
			Users:    users,
		}),
		Reports: report.NewService(institutions, report.Aggregates{
			Students:      peopleStores.Students,
			Employees:     peopleStores.Employees,
			Classes:       academicStores.Classes,
			Rooms:         schoolStores.Rooms,
			ClassSubjects: academicStores.ClassSubjects,
			Periods:       academicStores.Periods,
			Exams:         academicStores.Exams,
			Assignments:   academicStores.Assignments,
			Attendances:   academicStores.Attendances,
			Payments:      financeStores.Payments,
			TermResults:   academicStores.TermResults,
		}, report.Listings{
			Students:    peopleSvc.Students,
			Employees:   peopleSvc.Employees,
			Classes:     academicSvc.Classes,
			Attendances: academicSvc.Attendances,
			TermResults: academicSvc.TermResults,
		}, peopleSvc, schoolSvc),
		Fundamentals: fundamentals.NewService(sqlxrepos.NewZarRateStore(db), ratesvc.NewClient(conf), objects),
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
