package email

import (
	"fmt"
	"html"
)

// SettlementEmailData carries what a settlement notice shows its owner.
type SettlementEmailData struct {
	Name         string
	Email        string
	SettlementID string
	Status       string
	Amount       string
	PeriodStart  string
	PeriodEnd    string
	AppName      string
	BaseURL      string
}

// BuildSettlementStatusEmail tells a tier owner their settlement moved to
// data.Status ("approved" or "paid").
func BuildSettlementStatusEmail(data SettlementEmailData) Message {
	appName := data.AppName
	if appName == "" {
		appName = "Franchise"
	}
	name := data.Name
	if name == "" {
		name = "there"
	}

	var subject, line string
	switch data.Status {
	case "paid":
		subject = fmt.Sprintf("%s: your settlement of %s has been paid", appName, data.Amount)
		line = "has been paid. The transfer to your payout account is on its way."
	default:
		subject = fmt.Sprintf("%s: your settlement of %s was approved", appName, data.Amount)
		line = "was approved by head office and is scheduled for payment."
	}
	link := fmt.Sprintf("%s/settlements/%s", data.BaseURL, data.SettlementID)

	textBody := fmt.Sprintf(`Hi %s,

Your settlement for %s to %s (%s) %s

Details: %s

Thanks,
The %s Team`,
		name, data.PeriodStart, data.PeriodEnd, data.Amount, line, link, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p>Your settlement for <strong>%s</strong> to <strong>%s</strong> %s</p>
    <p style="background-color: #f3f4f6; padding: 10px 15px; border-radius: 4px; font-family: monospace; font-size: 18px;">%s</p>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">View settlement</a>
    </p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		html.EscapeString(name), data.PeriodStart, data.PeriodEnd, line, data.Amount, link, html.EscapeString(appName))

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}
