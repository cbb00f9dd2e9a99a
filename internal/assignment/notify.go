// internal/assignment/notify.go
package assignment

import (
	"context"
	"fmt"

	"github.com/026iFly/foam-sub000/internal/availability"
	commonerrors "github.com/026iFly/foam-sub000/internal/common/errors"
	"github.com/026iFly/foam-sub000/internal/common/logger"
	"github.com/026iFly/foam-sub000/internal/common/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notifier delivers assignment events. Deliveries are best effort:
// implementations log and count failures but never surface them, so a
// broken channel cannot roll back a state transition that already
// happened.
type Notifier interface {
	ConfirmationRequested(ctx context.Context, booking *Booking, installer availability.Installer, emailToken, discordToken string)
	BookingConfirmed(ctx context.Context, booking *Booking)
	AdminAlert(ctx context.Context, subject, message string)
}

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type TopicPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type DiscordSender interface {
	SendMessage(ctx context.Context, userID, message string) error
}

// MultiNotifier fans out to SES, Discord and SNS. Any client may be
// nil, in which case that channel is skipped.
type MultiNotifier struct {
	email   EmailSender
	discord DiscordSender
	topic   TopicPublisher

	fromEmail      string
	confirmBaseURL string
	adminTopicARN  string

	logger logger.Logger
}

type NotifierConfig struct {
	FromEmail      string
	ConfirmBaseURL string
	AdminTopicARN  string
}

func NewMultiNotifier(email EmailSender, discord DiscordSender, topic TopicPublisher, cfg NotifierConfig, log logger.Logger) *MultiNotifier {
	return &MultiNotifier{
		email:          email,
		discord:        discord,
		topic:          topic,
		fromEmail:      cfg.FromEmail,
		confirmBaseURL: cfg.ConfirmBaseURL,
		adminTopicARN:  cfg.AdminTopicARN,
		logger:         log,
	}
}

// ConfirmationRequested asks an installer to accept or decline over
// email and Discord. Each channel carries its own token.
func (n *MultiNotifier) ConfirmationRequested(ctx context.Context, booking *Booking, installer availability.Installer, emailToken, discordToken string) {
	if n.email != nil && installer.Email != "" {
		subject := fmt.Sprintf("Uppdragsförfrågan %s (%s)", booking.ScheduledDate, booking.Slot)
		body := fmt.Sprintf(
			"Hej %s!\n\nDu har fått en uppdragsförfrågan för %s (%s).\n\nAcceptera: %s/confirm?token=%s&action=accept\nAvböj: %s/confirm?token=%s&action=decline\n",
			installer.Name, booking.ScheduledDate, booking.Slot,
			n.confirmBaseURL, emailToken, n.confirmBaseURL, emailToken)

		_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
			Source:      aws.String(n.fromEmail),
			Destination: &sestypes.Destination{ToAddresses: []string{installer.Email}},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(body)}},
			},
		})
		n.record(ChannelEmail, err, booking.ID, installer.ID)
	}

	if n.discord != nil && installer.DiscordID != "" {
		msg := fmt.Sprintf(
			"Ny uppdragsförfrågan %s (%s). Svara här: %s/confirm?token=%s",
			booking.ScheduledDate, booking.Slot, n.confirmBaseURL, discordToken)
		err := n.discord.SendMessage(ctx, installer.DiscordID, msg)
		n.record(ChannelDiscord, err, booking.ID, installer.ID)
	}
}

// BookingConfirmed tells the customer that the full crew is in place.
func (n *MultiNotifier) BookingConfirmed(ctx context.Context, booking *Booking) {
	if n.email == nil || booking.CustomerEmail == "" {
		return
	}

	subject := fmt.Sprintf("Din installation %s är bekräftad", booking.ScheduledDate)
	body := fmt.Sprintf(
		"Hej %s!\n\nHela installationsteamet har nu bekräftat din bokning %s (%s). Vi ses då!\n",
		booking.CustomerName, booking.ScheduledDate, booking.Slot)

	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.fromEmail),
		Destination: &sestypes.Destination{ToAddresses: []string{booking.CustomerEmail}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(body)}},
		},
	})
	n.record(ChannelEmail, err, booking.ID, "")
}

// AdminAlert publishes an operational problem (staffing shortfall,
// exhausted reassignment) to the admin SNS topic.
func (n *MultiNotifier) AdminAlert(ctx context.Context, subject, message string) {
	if n.topic == nil || n.adminTopicARN == "" {
		n.logger.Warn("admin alert dropped, no topic configured", map[string]interface{}{
			"subject": subject,
		})
		return
	}

	_, err := n.topic.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.adminTopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	n.record("sns", err, "", "")
}

func (n *MultiNotifier) record(channel string, err error, bookingID, installerID string) {
	if err == nil {
		return
	}
	stdErr := commonerrors.NewNotificationSendFailedError(channel, err)
	metrics.NotificationFailures.WithLabelValues(channel).Inc()
	n.logger.Warn("notification delivery failed", map[string]interface{}{
		"bookingId":   bookingID,
		"installerId": installerID,
		"errorCode":   string(stdErr.Code),
		"error":       stdErr.Details,
	})
}
