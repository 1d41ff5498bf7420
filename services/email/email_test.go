package emailsvc

import (
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())

	svc.SendMessages(
		&core.EmailMessage{
			To:      []mail.Address{{Name: "Ani", Address: "ani@example.com"}},
			Subject: "hello",
			BodyStr: "plain body",
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "budi@example.com"}}, Subject: "no content"},
	)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Subject)
	assert.Equal(t, "plain body", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestConsoleFormat(t *testing.T) {
	conf := core.NewTestConfig()
	svc := consoleService{defaultFromEmail: conf.DefaultFromEmail(), subjPrefix: "[Semindo] "}

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ani", Address: "ani@example.com"}},
		Subject:     "Booking approved",
		TextContent: "see you",
		HTMLContent: "<p>see you</p>",
	}
	require.NoError(t, msg.Attach(strings.NewReader("agenda"), "agenda.txt", "text/plain"))

	body, err := svc.format(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [Semindo] Booking approved\r\n")
	assert.Contains(t, body, `To: "Ani" <ani@example.com>`)
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "<p>see you</p>")
	assert.Contains(t, body, "filename=agenda.txt")
}

func TestSendgridPrepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig(), nil).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ani", Address: "ani@example.com"}},
		Cc:          []mail.Address{{Address: "cc@example.com"}},
		Subject:     "Disposition",
		TextContent: "text",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Semindo] Disposition", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ani@example.com", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, []string{"semindo"}, m.Categories)
	assert.Equal(t, "test", m.CustomArgs["env"])
	require.NotNil(t, m.MailSettings)
	require.NotNil(t, m.MailSettings.SandboxMode)
	assert.True(t, *m.MailSettings.SandboxMode.Enable, "test config sends in sandbox mode")

	m = svc.prepare(core.EmailMessage{
		To:           []mail.Address{{Address: "ani@example.com"}},
		Subject:      "Booking approved",
		TemplateName: "booking_status",
		TextContent:  "text",
	})
	assert.Equal(t, []string{"semindo", "booking_status"}, m.Categories)
}

func TestSendgridSend(t *testing.T) {
	tests := []struct {
		name      string
		responses []int // status per call; 0 fails the call
		wantCalls int
		wantErr   bool
	}{
		{name: "accepted", responses: []int{http.StatusAccepted}, wantCalls: 1},
		{name: "throttled then accepted", responses: []int{http.StatusTooManyRequests, http.StatusAccepted}, wantCalls: 2},
		{name: "network error then accepted", responses: []int{0, http.StatusAccepted}, wantCalls: 2},
		{name: "bad request is final", responses: []int{http.StatusBadRequest}, wantCalls: 1, wantErr: true},
		{name: "gives up", responses: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusInternalServerError}, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSendgridService(core.NewTestConfig(), nil).(*sendgridService)
			svc.backoff = 0

			var calls int
			svc.api = func(req rest.Request) (*rest.Response, error) {
				status := tt.responses[calls]
				calls++
				assert.Equal(t, rest.Post, req.Method)
				if status == 0 {
					return nil, errors.New("connection reset")
				}
				return &rest.Response{StatusCode: status}, nil
			}

			err := svc.send(svc.prepare(core.EmailMessage{
				To:          []mail.Address{{Address: "ani@example.com"}},
				Subject:     "hello",
				TextContent: "text",
			}))
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
