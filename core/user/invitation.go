package user

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/askante/core"
)

const invitationSubject = "School Management System Registration Link"

// NewInvitationCode returns a fresh, unguessable invitation code.
func NewInvitationCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// InvitationMessage is the registration link mailed to an invited student, employee or publisher user.
func InvitationMessage(frontendBaseURL, email, name, kind, code string) *core.EmailMessage {
	q := make(url.Values)
	q.Set("code", code)
	q.Set("type", kind)
	return core.NewEmailMessage(email, invitationSubject, map[string]interface{}{
		"name":             name,
		"registration_url": fmt.Sprintf("%s/register?%s", frontendBaseURL, q.Encode()),
	})
}
