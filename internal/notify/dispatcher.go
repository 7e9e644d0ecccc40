// Package notify handles application submissions: it validates them, emails
// the team and the applicant through SES, and fans out best-effort alerts.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"blockhost-portal/internal/analytics"
	"blockhost-portal/internal/common/errors"
	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/common/metrics"
	"blockhost-portal/internal/common/zoho"
	"blockhost-portal/internal/forms"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

const (
	KindInternal     = "internal"
	KindConfirmation = "confirmation"

	maxRequestBody = 64 << 10
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type CRM interface {
	SyncContact(ctx context.Context, contact *zoho.Contact) (string, error)
}

// EventSink receives one categorical event per accepted application.
type EventSink interface {
	Send(ctx context.Context, event analytics.Event) error
}

// EventApplicationReceived is recorded server side for every accepted application.
const EventApplicationReceived = "application_received"

type Config struct {
	FromEmail         string
	StandardRecipient string
	FoundingRecipient string
	SNSEnabled        bool
	SNSTopicARN       string
	CRMEnabled        bool
}

func (c *Config) recipient(f forms.FormType) string {
	if f == forms.Founding {
		return c.FoundingRecipient
	}
	return c.StandardRecipient
}

type Request struct {
	FormType forms.FormType `json:"formType"`
	FormData forms.Values   `json:"formData"`
}

type MessageRef struct {
	ID string `json:"id"`
}

type Response struct {
	Success              bool       `json:"success"`
	EmailResponse        MessageRef `json:"emailResponse"`
	ConfirmationResponse MessageRef `json:"confirmationResponse"`
}

var requestSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"formType": {"type": "string", "enum": ["standard", "founding"]},
		"formData": {"type": "object"}
	},
	"required": ["formType", "formData"],
	"additionalProperties": false
}`)

type Dispatcher struct {
	config    *Config
	sesClient SESService
	snsClient SNSService
	crm       CRM
	events    EventSink
	logger    logger.Logger
	errors    *errors.ErrorHandler
}

// NewDispatcher wires the dispatcher. snsClient and crm may be nil when the
// matching integration is disabled.
func NewDispatcher(cfg *Config, sesClient SESService, snsClient SNSService, crm CRM, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config:    cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		crm:       crm,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		errors:    errors.NewErrorHandler(log),
	}
}

// WithEvents records accepted applications to sink. A nil sink disables it.
func (d *Dispatcher) WithEvents(sink EventSink) *Dispatcher {
	d.events = sink
	return d
}

// DecodeRequest checks the envelope shape and decodes it.
func DecodeRequest(body []byte) (*Request, error) {
	result, err := gojsonschema.Validate(requestSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.NewBadRequestError("Invalid request body", err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.NewBadRequestError("Invalid request", strings.Join(msgs, "; "))
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.NewBadRequestError("Invalid request body", err.Error())
	}
	return &req, nil
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		d.errors.HandleHTTPError(w, r, errors.NewBadRequestError("Invalid request body", err.Error()))
		return
	}

	req, err := DecodeRequest(body)
	if err != nil {
		metrics.ApplicationsReceived.WithLabelValues("unknown", "rejected").Inc()
		d.errors.HandleHTTPError(w, r, err)
		return
	}

	resp, err := d.Execute(r.Context(), req)
	if err != nil {
		d.errors.HandleHTTPError(w, r, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, resp)
}

// Execute validates the submission and sends the internal notification
// followed by the applicant confirmation.
func (d *Dispatcher) Execute(ctx context.Context, req *Request) (*Response, error) {
	formType := string(req.FormType)
	if !req.FormType.Valid() {
		metrics.ApplicationsReceived.WithLabelValues("unknown", "rejected").Inc()
		return nil, errors.NewBadRequestError("Invalid form type", formType)
	}

	if fieldErrors := forms.Validate(req.FormType, req.FormData); fieldErrors != nil {
		metrics.ApplicationsReceived.WithLabelValues(formType, "invalid").Inc()
		return nil, errors.NewValidationFailedError(fieldErrors)
	}

	submissionID := uuid.New().String()
	log := d.logger.WithFields(map[string]interface{}{
		"submissionId": submissionID,
		"formType":     formType,
	})
	log.Info("processing application", nil)

	applicant := req.FormData.String("email")

	internal, err := renderInternal(req.FormType, req.FormData, submissionID)
	if err != nil {
		metrics.ApplicationsReceived.WithLabelValues(formType, "failed").Inc()
		return nil, errors.NewNotificationSendFailedError(KindInternal, err)
	}
	internalID, err := d.sendEmail(ctx, d.config.recipient(req.FormType), applicant, internal)
	if err != nil {
		return nil, d.sendFailed(log, formType, KindInternal, err)
	}
	metrics.NotificationsSent.WithLabelValues(formType, KindInternal, "sent").Inc()

	confirmation, err := renderConfirmation(req.FormType)
	if err != nil {
		metrics.ApplicationsReceived.WithLabelValues(formType, "failed").Inc()
		return nil, errors.NewNotificationSendFailedError(KindConfirmation, err)
	}
	confirmationID, err := d.sendEmail(ctx, applicant, "", confirmation)
	if err != nil {
		return nil, d.sendFailed(log, formType, KindConfirmation, err)
	}
	metrics.NotificationsSent.WithLabelValues(formType, KindConfirmation, "sent").Inc()

	d.publishAlert(ctx, log, req, submissionID)
	d.syncContact(ctx, log, req)
	d.recordEvent(ctx, log, req, submissionID)

	metrics.ApplicationsReceived.WithLabelValues(formType, "accepted").Inc()
	log.Info("application processed", map[string]interface{}{
		"emailId":        internalID,
		"confirmationId": confirmationID,
	})

	return &Response{
		Success:              true,
		EmailResponse:        MessageRef{ID: internalID},
		ConfirmationResponse: MessageRef{ID: confirmationID},
	}, nil
}

func (d *Dispatcher) sendFailed(log logger.Logger, formType, kind string, err error) error {
	log.Error("email send failed", map[string]interface{}{
		"kind":  kind,
		"error": err.Error(),
	})
	metrics.NotificationsSent.WithLabelValues(formType, kind, "failed").Inc()
	metrics.ApplicationsReceived.WithLabelValues(formType, "failed").Inc()
	return errors.NewNotificationSendFailedError(kind, err)
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, replyTo string, msg *rendered) (string, error) {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(d.config.FromEmail),
	}
	if replyTo != "" {
		input.ReplyToAddresses = []string{replyTo}
	}

	out, err := d.sesClient.SendEmail(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// publishAlert pages the team about founding applications. Failures are logged only.
func (d *Dispatcher) publishAlert(ctx context.Context, log logger.Logger, req *Request, submissionID string) {
	if !d.config.SNSEnabled || d.snsClient == nil || req.FormType != forms.Founding {
		return
	}
	message := fmt.Sprintf("New founding application from %s %s <%s> (%s)",
		req.FormData.String("firstName"), req.FormData.String("lastName"), req.FormData.String("email"), submissionID)

	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.config.SNSTopicARN),
		Subject:  aws.String("New founding application"),
		Message:  aws.String(message),
	})
	if err != nil {
		log.Warn("founding alert failed", map[string]interface{}{"error": err.Error()})
	}
}

// syncContact records the applicant in the CRM. Failures are logged only.
func (d *Dispatcher) syncContact(ctx context.Context, log logger.Logger, req *Request) {
	if !d.config.CRMEnabled || d.crm == nil {
		return
	}
	contact := &zoho.Contact{
		Email:       req.FormData.String("email"),
		FirstName:   req.FormData.String("firstName"),
		LastName:    req.FormData.String("lastName"),
		Source:      "BlockHost " + req.FormType.Title(),
		Description: describe(req),
	}
	id, err := d.crm.SyncContact(ctx, contact)
	if err != nil {
		log.Warn("crm sync failed", map[string]interface{}{"error": err.Error()})
		return
	}
	log.Debug("crm contact synced", map[string]interface{}{"contactId": id})
}

// recordEvent stores the categorical summary only, never contact details.
func (d *Dispatcher) recordEvent(ctx context.Context, log logger.Logger, req *Request, submissionID string) {
	if d.events == nil {
		return
	}
	err := d.events.Send(ctx, analytics.Event{
		ID:        submissionID,
		Name:      EventApplicationReceived,
		Params:    forms.Summary(req.FormType, req.FormData),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Warn("application event not recorded", map[string]interface{}{"error": err.Error()})
	}
}

func describe(req *Request) string {
	summary := forms.Summary(req.FormType, req.FormData)
	parts := make([]string, 0, len(summary))
	for _, field := range forms.Fields(req.FormType) {
		if field.AnalyticsKey == "" {
			continue
		}
		if v, ok := summary[field.AnalyticsKey]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", field.Label, v))
		}
	}
	return strings.Join(parts, "\n")
}
