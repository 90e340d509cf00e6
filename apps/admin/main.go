package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
	emailsvc "github.com/trezcool/askante/services/email"
	logsvc "github.com/trezcool/askante/services/logger"
	paymentsvc "github.com/trezcool/askante/services/payment"
	"github.com/trezcool/askante/storage/database"
	sqlxrepos "github.com/trezcool/askante/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(db, usrRepo, sqlxrepos.NewInvitationRepository(db), emailsvc.NewConsoleService(conf), conf)

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  usrRepo,
		invoices: tenant.NewService(db, sqlxrepos.NewTenantStores(db), usrSvc, paymentsvc.NewYocoGateway(conf)),
		now:      time.Now,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
