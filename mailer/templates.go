package mailer

import "fmt"

// VerificationMail asks the user to confirm their address.
func VerificationMail(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "Bitte bestätigen Sie Ihre E-Mail-Adresse",
		Body: fmt.Sprintf("Hallo %s,\n\nwillkommen bei Ask Warren. Bitte bestätigen Sie Ihre E-Mail-Adresse:\n\n%s\n\n"+
			"Falls Sie sich nicht registriert haben, ignorieren Sie diese Nachricht.\n", name, link),
	}
}

// ResetMail carries the password reset link.
func ResetMail(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Passwort zurücksetzen",
		Body: fmt.Sprintf("Hallo,\n\nüber den folgenden Link können Sie ein neues Passwort für Ask Warren festlegen:\n\n%s\n\n"+
			"Der Link ist eine Stunde gültig.\n", link),
	}
}
