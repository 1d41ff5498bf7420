package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	sendAttempts = 3
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	category   string
	env        string
	sandbox    bool
	logger     core.Logger

	api     func(rest.Request) (*rest.Response, error) // mockable
	backoff time.Duration
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService returns a service sending messages through the SendGrid v3 API.
// QA and test environments run in sandbox mode: SendGrid validates the payload without delivering it.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridAPIKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		category:   strings.ToLower(conf.AppName),
		env:        strings.ToLower(conf.Env),
		sandbox:    conf.TestMode || conf.Env == "QA",
		logger:     logger,
		api:        sendgrid.API,
		backoff:    time.Second,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				svc.deliver(*msg)
			}
		}()
	}
}

// prepare builds the v3 payload; template names become categories so deliveries can be told apart in SendGrid stats.
func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     a.Content.String(), // already base64
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}

	if svc.category != "" {
		m.AddCategories(svc.category)
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	m.SetCustomArg("env", svc.env)
	if svc.sandbox {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// retryable reports whether SendGrid may accept the same payload later.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// send posts one payload, retrying throttled and server-side failures with a doubling backoff.
func (svc *sendgridService) send(m *sgmail.SGMailV3) error {
	body := sgmail.GetRequestBody(m)
	wait := svc.backoff

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(wait)
			wait *= 2
		}
		req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
		req.Method = http.MethodPost
		req.Body = body

		res, err := svc.api(req)
		switch {
		case err != nil:
			lastErr = errors.Wrap(err, "calling sendgrid")
		case retryable(res.StatusCode):
			lastErr = errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
	}
	return errors.Wrapf(lastErr, "giving up after %d attempts", sendAttempts)
}

func (svc *sendgridService) deliver(msg core.EmailMessage) {
	if err := svc.send(svc.prepare(msg)); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err),
			map[string]interface{}{"subject": msg.Subject, "template": msg.TemplateName})
	}
}
