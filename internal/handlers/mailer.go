package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/domain"
)

const mailerTimeout = 10 * time.Second

type MailerSettings struct {
	MailTo      string `mapstructure:"mail_to"`
	MailFrom    string `mapstructure:"mail_from"`
	SMTPAddress string `mapstructure:"smtp_address"`
	SMTPPort    int    `mapstructure:"smtp_port"`
	SMTPDomain  string `mapstructure:"smtp_domain"`
}

func DefaultMailerSettings() MailerSettings {
	return MailerSettings{
		SMTPAddress: "localhost",
		SMTPPort:    25,
		SMTPDomain:  "localhost.localdomain",
	}
}

type MailerHandler struct {
	cfg MailerSettings
}

func NewMailerHandler(cfg MailerSettings) (*MailerHandler, error) {
	if cfg.MailTo == "" || cfg.MailFrom == "" {
		return nil, domain.InvalidConfig("mailer mail_to and mail_from are required")
	}
	return &MailerHandler{cfg: cfg}, nil
}

func (h *MailerHandler) Name() string { return "mailer" }

func (h *MailerHandler) Timeout() time.Duration { return mailerTimeout }

func (h *MailerHandler) Handle(ctx context.Context, event *domain.Event) error {
	addr := net.JoinHostPort(h.cfg.SMTPAddress, strconv.Itoa(h.cfg.SMTPPort))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return domain.Classify("smtp dial "+addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, h.cfg.SMTPAddress)
	if err != nil {
		conn.Close()
		return domain.Classify("smtp greeting", err)
	}
	defer client.Close()

	if err := h.deliver(client, h.message(event)); err != nil {
		return domain.Classify("smtp deliver", err)
	}
	return client.Quit()
}

func (h *MailerHandler) deliver(client *smtp.Client, msg []byte) error {
	if err := client.Hello(h.cfg.SMTPDomain); err != nil {
		return err
	}
	if err := client.Mail(h.cfg.MailFrom); err != nil {
		return err
	}
	for _, rcpt := range strings.Split(h.cfg.MailTo, ",") {
		if rcpt = strings.TrimSpace(rcpt); rcpt == "" {
			continue
		}
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func mailSubject(event *domain.Event) string {
	notification := event.Check.Notification
	if notification == "" {
		notification = event.Notification
	}
	return fmt.Sprintf("%s - %s: %s", event.ActionLabel(), event.IncidentKey(), notification)
}

func mailBody(event *domain.Event) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(event.Check.Output))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Host: %s\n", event.Client.Name)
	fmt.Fprintf(&b, "Timestamp: %s\n", event.IssuedAt().String())
	fmt.Fprintf(&b, "Address:  %s\n", event.Client.Address)
	fmt.Fprintf(&b, "Check Name:  %s\n", event.Check.Name)
	fmt.Fprintf(&b, "Command:  %s\n", event.Check.Command)
	fmt.Fprintf(&b, "Status:  %d\n", event.Check.Status.ExitCode())
	fmt.Fprintf(&b, "Occurrences:  %d\n", event.Occurrences)
	return b.String()
}

func (h *MailerHandler) message(event *domain.Event) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", h.cfg.MailFrom)
	fmt.Fprintf(&b, "To: %s\r\n", h.cfg.MailTo)
	fmt.Fprintf(&b, "Subject: %s\r\n", mailSubject(event))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(mailBody(event), "\n", "\r\n"))
	return b.Bytes()
}
