package mailer

import (
	"fmt"
	"strings"
	"time"

	"github.com/susumicapital/investor-portal/pkg/config"
)

const loginSubject = "Sign in to Susumi Investor Access"

func formatValidity(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// buildLoginBody renders the text and HTML parts of the sign-in email for
// the configured variant.
func buildLoginBody(variant, code, magicLink string, validity time.Duration) (text, html string) {
	window := formatValidity(validity)

	var textParts []string
	var htmlParts []string

	htmlParts = append(htmlParts, `<h2>Susumi Investor Access</h2>`)

	if variant == config.EmailVariantLink || variant == config.EmailVariantBoth {
		textParts = append(textParts, fmt.Sprintf("Click this link to sign in: %s", magicLink))
		htmlParts = append(htmlParts,
			`<p>Click the button below to sign in to the investor portal:</p>`,
			fmt.Sprintf(`<p><a href="%s" style="background-color: #0f766e; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Sign In</a></p>`, magicLink),
		)
	}
	if variant == config.EmailVariantCode || variant == config.EmailVariantBoth {
		label := "Your sign-in code is"
		if variant == config.EmailVariantBoth {
			label = "Or enter this sign-in code"
		}
		textParts = append(textParts, fmt.Sprintf("%s: %s", label, code))
		htmlParts = append(htmlParts,
			fmt.Sprintf(`<p>%s: <strong style="font-size: 24px; color: #0f766e;">%s</strong></p>`, label, code),
		)
	}

	textParts = append(textParts, fmt.Sprintf("This email is valid for %s. If you didn't request access, you can ignore it.", window))
	htmlParts = append(htmlParts,
		fmt.Sprintf(`<p>This email is valid for %s.</p>`, window),
		`<p>If you didn't request access, you can ignore this email.</p>`,
	)

	return strings.Join(textParts, "\n\n"), strings.Join(htmlParts, "\n")
}
