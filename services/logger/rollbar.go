package logsvc

import (
	"log"
	"strconv"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/user"
)

// RollbarLogger reports to Rollbar and echoes every entry to a std logger.
// Entries about a user carry the user as the Rollbar person and their tenant as extras.
type RollbarLogger struct {
	std *log.Logger

	// the person is global to the rollbar client: set it and send under one lock
	mu *sync.Mutex
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, mu: new(sync.Mutex)}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// tenantExtras describes where a user belongs.
func tenantExtras(usr user.User) map[string]interface{} {
	extras := map[string]interface{}{
		"role":      usr.Role,
		"superuser": usr.IsSuperuser,
	}
	if usr.OrganizationID.Valid {
		extras["organization"] = usr.OrganizationID.Int
	}
	if usr.PublisherID.Valid {
		extras["publisher"] = usr.PublisherID.Int
	}
	if usr.SpecialRole.Valid {
		extras["special_role"] = usr.SpecialRole.String
	}
	return extras
}

// prepare splits args into what rollbar sends and the user the entry is about.
// Expected args: error, map[string]interface{} extras, user.User (the first one wins).
func prepare(msg string, args []interface{}) (rbArgs []interface{}, usr *user.User) {
	rbArgs = make([]interface{}, 0, len(args)+2)
	rbArgs = append(rbArgs, msg)
	extras := make(map[string]interface{})
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if usr == nil {
				u := v
				usr = &u
			}
		case map[string]interface{}:
			for k, val := range v {
				extras[k] = val
			}
		default:
			rbArgs = append(rbArgs, arg)
		}
	}
	if usr != nil {
		for k, val := range tenantExtras(*usr) {
			if _, ok := extras[k]; !ok {
				extras[k] = val
			}
		}
	}
	if len(extras) > 0 {
		rbArgs = append(rbArgs, extras)
	}
	return rbArgs, usr
}

func (l RollbarLogger) send(send func(...interface{}), msg string, args []interface{}) {
	rbArgs, usr := prepare(msg, args)

	l.mu.Lock()
	if usr != nil {
		rollbar.SetPerson(strconv.Itoa(usr.ID), usr.Username, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	send(rbArgs...)
	l.mu.Unlock()

	l.print(msg, args)
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			l.std.Printf("user: %d (%s)\n", usr.ID, usr.Username)
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.send(rollbar.Debug, msg, args) }

func (l RollbarLogger) Info(msg string, args ...interface{}) { l.send(rollbar.Info, msg, args) }

func (l RollbarLogger) Warn(msg string, args ...interface{}) { l.send(rollbar.Warning, msg, args) }

func (l RollbarLogger) Error(msg string, args ...interface{}) { l.send(rollbar.Error, msg, args) }

// Fatal flushes the queued reports before exiting.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.send(rollbar.Critical, msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
