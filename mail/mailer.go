package mail

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"unicode"

	"housing-notifier/config"
	"housing-notifier/models"
	"housing-notifier/utils"
)

// Mailer renders admitted listings into a notification email and delivers it
// over SMTPS. Delivery failures are a log-level concern for the caller; the
// pipeline has already recorded admission either way.
type Mailer struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewMailer creates a Mailer using the configured SMTP account.
func NewMailer(cfg *config.Config, logger *utils.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Send emails the user their new listings. An empty set is checked up front
// and sends nothing.
func (m *Mailer) Send(user *models.UserFilter, listings []*models.Listing) error {
	if len(listings) == 0 {
		m.logger.Info("[mail] No new listings for %s — skipping email", user.Name)
		return nil
	}

	subject := fmt.Sprintf("New housing near %s", user.ZipCode)
	text, html := m.render(user, listings)
	msg := buildMessage(m.cfg.EmailUser, user.Email, subject, text, html)

	if err := m.deliver(user.Email, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", user.Email, err)
	}

	m.logger.Info("[mail] Sent %d listings to %s", len(listings), user.Email)
	return nil
}

// render produces the text and HTML alternatives of the notification body.
func (m *Mailer) render(user *models.UserFilter, listings []*models.Listing) (string, string) {
	var text, html strings.Builder

	greeting := fmt.Sprintf("Hey %s, I found %d new housing deals on Craigslist near %s.",
		titleCase(user.Name), len(listings), user.ZipCode)

	text.WriteString(greeting + "\n")
	html.WriteString("<html><body><p>" + greeting + "</p>\n")

	for _, l := range listings {
		fmt.Fprintf(&text, `
$%d / mo - %d BR - %s
* Title: %s
* URL: %s
* Housing type: %s
* Address: %s
* Parking: %s
* Laundry: %s
`,
			l.Price, l.Bedrooms, titleCase(l.Neighborhood),
			l.Title, l.URL, l.HousingType, l.Address, l.Parking, l.Laundry)

		fmt.Fprintf(&html, `<p>
$%d / mo - %d BR - %s<br>
<b><a href="%s">%s</a></b>
<ul>
  <li>Housing type: %s</li>
  <li>Address: %s</li>
  <li>Parking: %s</li>
  <li>Laundry: %s</li>
</ul>
</p><hr>
`,
			l.Price, l.Bedrooms, titleCase(l.Neighborhood),
			l.URL, l.Title, l.HousingType, l.Address, l.Parking, l.Laundry)
	}

	html.WriteString("</body></html>")
	return text.String(), html.String()
}

// buildMessage assembles a multipart/alternative MIME message.
func buildMessage(from, to, subject, text, html string) []byte {
	const boundary = "housing-notifier-alt"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, html)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String())
}

// deliver sends the message over an implicit-TLS SMTP connection.
func (m *Mailer) deliver(to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.SMTPHost})
	if err != nil {
		return fmt.Errorf("tls dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.cfg.EmailUser, m.cfg.EmailPass, m.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.cfg.EmailUser); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

// titleCase uppercases the first letter of each word, matching how
// neighborhoods and names read in the email body.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
