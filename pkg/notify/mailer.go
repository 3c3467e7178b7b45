package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(msg Message) error
}

// SMTPMailer sends email through an SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

// NewSMTPMailer builds an SMTP backed sender.
func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, password: password, from: from}
}

// Send dials the relay and delivers msg.
func (m *SMTPMailer) Send(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("send email: empty recipient")
	}
	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.To)
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/html", msg.HTML)

	d := gomail.NewDialer(m.host, m.port, m.user, m.password)
	if err := d.DialAndSend(mail); err != nil {
		return fmt.Errorf("send email via smtp: %w", err)
	}
	return nil
}

// AssignmentData feeds the lead assignment template.
type AssignmentData struct {
	StaffName string
	LeadNames []string
	Total     int
}

var assignmentTemplate = template.Must(template.New("assignment").Parse(`<p>Hello {{.StaffName}},</p>
<p>{{.Total}} lead(s) have been assigned to you:</p>
<ul>{{range .LeadNames}}<li>{{.}}</li>{{end}}</ul>
<p>Please follow up from your dashboard.</p>`))

// RenderAssignment renders the assignment notification body.
func RenderAssignment(data AssignmentData) (string, error) {
	var body bytes.Buffer
	if err := assignmentTemplate.Execute(&body, data); err != nil {
		return "", fmt.Errorf("render assignment email: %w", err)
	}
	return body.String(), nil
}
