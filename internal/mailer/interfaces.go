package mailer

// Service delivers the sign-in email. Implementations decide transport;
// the variant (link, code, or both) is fixed at construction from config.
type Service interface {
	SendLoginEmail(toEmail, code, magicLink string) error
}
