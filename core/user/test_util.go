package user

import (
	"context"

	"github.com/trezcool/askante/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that sends its mails synchronously.
func NewServiceMock(db core.DB, repo Repository, invitations InvitationRepository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			db:          db,
			repo:        repo,
			invitations: invitations,
			mailSvc:     mailSvc,
			conf:        conf,
			tokens:      newTokenGenerator(conf),
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, username string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
