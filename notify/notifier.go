// Package notify owns outbound mail for funding events. Callers treat every
// method as fire-and-forget: delivery failures are returned for logging but
// must never affect the payment transition that triggered them.
package notify

import (
	"fmt"

	models "github.com/phillip/crowdfund-backend/models"
	utils "github.com/phillip/crowdfund-backend/utils"
)

type Notifier interface {
	// ContributorConfirmed thanks the contributor once their payment
	// settles. Anonymous pledges carry no contributor and are skipped.
	ContributorConfirmed(contributor *models.Contributor, campaign *models.Campaign, contribution *models.Contribution) error
	// CreatorNewPledge alerts the campaign creator about a settled pledge.
	CreatorNewPledge(creator *models.User, campaign *models.Campaign, contribution *models.Contribution) error
	// GoalReached congratulates the creator the first time the campaign
	// total crosses its goal.
	GoalReached(creator *models.User, campaign *models.Campaign) error
}

// Mailer sends notifications through the ZeptoMail transport.
type Mailer struct{}

func NewMailer() *Mailer { return &Mailer{} }

func (m *Mailer) ContributorConfirmed(contributor *models.Contributor, campaign *models.Campaign, contribution *models.Contribution) error {
	if contributor == nil || contributor.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("Your contribution to %s is confirmed", campaign.Title)
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your contribution of %.2f %s to <b>%s</b> has been confirmed. Thank you for your support!</p>`,
		contributor.Name, contribution.Amount, contribution.Payment.Currency, campaign.Title,
	)
	return utils.SendEmail(contributor.Email, contributor.Name, subject, body)
}

func (m *Mailer) CreatorNewPledge(creator *models.User, campaign *models.Campaign, contribution *models.Contribution) error {
	if creator == nil || creator.Email == "" {
		return nil
	}

	from := "An anonymous supporter"
	if !contribution.IsAnonymous && contribution.Contributor != nil {
		from = contribution.Contributor.Name
	}

	subject := fmt.Sprintf("New pledge on %s", campaign.Title)
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>%s pledged %.2f %s to <b>%s</b>. The campaign has now raised %.2f of its %.2f goal.</p>`,
		creator.Name, from, contribution.Amount, contribution.Payment.Currency,
		campaign.Title, campaign.CurrentAmount, campaign.GoalAmount,
	)
	return utils.SendEmail(creator.Email, creator.Name, subject, body)
}

func (m *Mailer) GoalReached(creator *models.User, campaign *models.Campaign) error {
	if creator == nil || creator.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("%s reached its goal!", campaign.Title)
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Congratulations! <b>%s</b> has reached its funding goal of %.2f.</p>`,
		creator.Name, campaign.Title, campaign.GoalAmount,
	)
	return utils.SendEmail(creator.Email, creator.Name, subject, body)
}

// Noop discards all notifications. Used when mail is unconfigured and in
// tests.
type Noop struct{}

func (Noop) ContributorConfirmed(*models.Contributor, *models.Campaign, *models.Contribution) error {
	return nil
}
func (Noop) CreatorNewPledge(*models.User, *models.Campaign, *models.Contribution) error { return nil }
func (Noop) GoalReached(*models.User, *models.Campaign) error                            { return nil }
