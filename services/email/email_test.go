package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core"
)

var conf = &core.Config{
	AppName: "Askante",
	Email:   core.EmailConfig{TemplateID: "d-template", From: "Askante<no-reply@askante.net>"},
}

func TestSendgridPrepare(t *testing.T) {
	svc := NewSendgridService(conf, nil)

	m := svc.prepare(*core.NewEmailMessage("ann@test.test", "Invitation", map[string]interface{}{"name": "Ann"}))
	assert.Equal(t, "d-template", m.TemplateID)
	assert.Equal(t, "no-reply@askante.net", m.From.Address)
	assert.Equal(t, "Askante", m.From.Name)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "ann@test.test", p.To[0].Address)
	assert.Equal(t, map[string]interface{}{"name": "Ann", "subject": "Invitation"}, p.DynamicTemplateData)
	assert.Empty(t, m.Content)

	m = svc.prepare(core.EmailMessage{To: []mail.Address{{Address: "bob@test.test"}}, Subject: "Hi", BodyStr: "Hello"})
	assert.Empty(t, m.TemplateID)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "Hello", m.Content[0].Value)
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(conf)
	svc.SendMessages(
		core.NewEmailMessage("ann@test.test", "Invitation", map[string]interface{}{"name": "Ann"}),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lost"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@test.test"}}, Subject: "no content"},
	)
	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Invitation", sent[0].Subject)

	body := svc.render(sent[0])
	assert.Contains(t, body, "Subject: [Askante] Invitation")
	assert.Contains(t, body, "name: Ann")
	assert.Contains(t, body, "subject: Invitation")
}
