package notifications

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/multierr"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

type usersRepository interface {
	FindActiveByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

// Service sends the edit request workflow emails: reviewers hear about new
// submissions, requesters hear about decisions. Per-recipient failures are
// aggregated so one bad mailbox does not hide the rest.
type Service struct {
	mailer  Mailer
	users   usersRepository
	baseURL string
}

// NewService builds the notification service. baseURL is the externally
// reachable application URL used in email links.
func NewService(mailer Mailer, users usersRepository, baseURL string) (*Service, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &Service{mailer: mailer, users: users, baseURL: baseURL}, nil
}

// EditRequestSubmitted notifies every active reviewer of a new submission.
func (s *Service) EditRequestSubmitted(ctx context.Context, req *models.EditRequest, cert *models.Certificate) error {
	reviewers, err := s.users.FindActiveByRole(ctx, enums.UserRoleReviewer)
	if err != nil {
		return fmt.Errorf("listing reviewers: %w", err)
	}

	subject := fmt.Sprintf("Edit request submitted for certificate %s", cert.DisplayName())
	link := fmt.Sprintf("%s/edit-requests/%s", s.baseURL, req.ID)
	text := fmt.Sprintf(
		"An edit request was submitted for certificate %s.\n\nReview it at: %s\n",
		cert.DisplayName(), link)
	htmlBody := fmt.Sprintf(
		"<p>An edit request was submitted for certificate <strong>%s</strong>.</p><p><a href=%q>Review the request</a></p>",
		html.EscapeString(cert.DisplayName()), link)

	var errs error
	for _, reviewer := range reviewers {
		err := s.mailer.Send(ctx, Message{
			To:      reviewer.Email,
			Subject: subject,
			Text:    text,
			HTML:    htmlBody,
		})
		errs = multierr.Append(errs, err)
	}
	return errs
}

// EditRequestReviewed notifies the requesting contact of the decision.
func (s *Service) EditRequestReviewed(ctx context.Context, req *models.EditRequest, cert *models.Certificate) error {
	if req.Contact == nil || req.Contact.Email == "" {
		return fmt.Errorf("edit request %s has no contact email", req.ID)
	}

	subject := fmt.Sprintf("Edit request for certificate %s was %s", cert.DisplayName(), req.Status)
	text := fmt.Sprintf(
		"Your edit request for certificate %s was %s.\n",
		cert.DisplayName(), req.Status)
	htmlBody := fmt.Sprintf(
		"<p>Your edit request for certificate <strong>%s</strong> was <strong>%s</strong>.</p>",
		html.EscapeString(cert.DisplayName()), req.Status)

	return s.mailer.Send(ctx, Message{
		To:      req.Contact.Email,
		Subject: subject,
		Text:    text,
		HTML:    htmlBody,
	})
}
