package mailer

import (
	"fmt"

	"github.com/susumicapital/investor-portal/pkg/logger"
)

// DevMailer prints the sign-in artifacts instead of sending anything.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendLoginEmail(toEmail, code, magicLink string) error {
	logger.Info("📧 [DEV MAIL] Sign-in Email",
		"to", toEmail,
		"code", code,
		"magic_link", magicLink,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 SIGN-IN EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s\n"+
		"Subject: %s\n"+
		"\n"+
		"Sign-in Code: %s\n"+
		"Magic Link: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		toEmail, loginSubject, code, magicLink)

	return nil
}
