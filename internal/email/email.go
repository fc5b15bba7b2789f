package email

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"

	"ikk-backend/internal/config"
)

// Service handles email notifications
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

// SendAnalystAssignedNotification tells an analyst a policy was assigned to them
func (s *Service) SendAnalystAssignedNotification(to, analystName, policyName string, policyID uint) error {
	subject := "Penugasan Penilaian Kebijakan - IKK"
	assessmentURL := fmt.Sprintf("%s/policies/%d/assessment", s.config.AppBaseURL, policyID)

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Penugasan Penilaian</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">Penugasan Penilaian Mandiri</h2>
        <p>Halo %s,</p>
        <p>Anda ditugaskan sebagai analis untuk kebijakan <strong>%s</strong>.</p>
        <p>Silakan mulai mengisi kuesioner penilaian mandiri melalui tautan berikut:</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Buka Kuesioner</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Email ini dikirim secara otomatis. Mohon tidak membalas.</p>
    </div>
</body>
</html>
`, analystName, policyName, assessmentURL)

	return s.sendEmail(to, subject, body)
}

// SendVerificationRequestNotification tells a verifier a policy is awaiting validation
func (s *Service) SendVerificationRequestNotification(to, policyName, agencyName string, policyID uint) error {
	subject := "Kebijakan Menunggu Validasi - IKK"
	verificationURL := fmt.Sprintf("%s/policies/%d/verification", s.config.AppBaseURL, policyID)

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Menunggu Validasi</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">Kebijakan Menunggu Validasi</h2>
        <p>Penilaian mandiri untuk kebijakan <strong>%s</strong> dari instansi <strong>%s</strong> telah diajukan dan menunggu validasi Anda.</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Mulai Validasi</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Email ini dikirim secara otomatis. Mohon tidak membalas.</p>
    </div>
</body>
</html>
`, policyName, agencyName, verificationURL)

	return s.sendEmail(to, subject, body)
}

// SendAssessmentSubmittedNotification tells an agency coordinator that the
// self-assessment of one of their policies went out for validation
func (s *Service) SendAssessmentSubmittedNotification(to, coordinatorName, policyName string, policyID uint) error {
	subject := "Penilaian Mandiri Diajukan - IKK"
	policyURL := fmt.Sprintf("%s/policies/%d", s.config.AppBaseURL, policyID)

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Penilaian Diajukan</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">Penilaian Mandiri Diajukan</h2>
        <p>Halo %s,</p>
        <p>Penilaian mandiri untuk kebijakan <strong>%s</strong> telah diajukan oleh analis dan kini menunggu validasi verifikator.</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Lihat Kebijakan</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Email ini dikirim secara otomatis. Mohon tidak membalas.</p>
    </div>
</body>
</html>
`, coordinatorName, policyName, policyURL)

	return s.sendEmail(to, subject, body)
}

// SendFinalizedNotification tells the policy creator the assessment is complete
func (s *Service) SendFinalizedNotification(to, creatorName, policyName string, finalScore float64) error {
	subject := "Penilaian Kebijakan Selesai - IKK"

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Penilaian Selesai</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #27ae60;">Penilaian Selesai</h2>
        <p>Halo %s,</p>
        <p>Penilaian untuk kebijakan <strong>%s</strong> telah divalidasi dan dinyatakan selesai.</p>
        <div style="background-color: #d4edda; border-left: 4px solid #28a745; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;"><strong>Nilai akhir:</strong> %.2f</p>
        </div>
        <p>Terima kasih atas partisipasi Anda dalam pengukuran Indeks Kualitas Kebijakan.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Email ini dikirim secara otomatis. Mohon tidak membalas.</p>
    </div>
</body>
</html>
`, creatorName, policyName, finalScore)

	return s.sendEmail(to, subject, body)
}

// SendStageReminderEmail reminds the responsible user about a stalled policy
func (s *Service) SendStageReminderEmail(to, userName, policyName, status string, daysStalled int) error {
	subject := "Pengingat: Kebijakan Belum Diproses - IKK"

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Pengingat Kebijakan</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #e67e22;">Pengingat</h2>
        <p>Halo %s,</p>
        <p>Kebijakan <strong>%s</strong> masih berada pada tahap <strong>%s</strong> dan belum diproses selama %d hari.</p>
        <p>Mohon segera menindaklanjuti agar proses penilaian tidak terhambat.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">Pengingat ini dikirim secara berkala selama kebijakan belum diproses.</p>
    </div>
</body>
</html>
`, userName, policyName, status, daysStalled)

	return s.sendEmail(to, subject, body)
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(to, subject, body string) error {
	if !s.config.Enabled {
		slog.Debug("Email sending disabled, skipping", "to", to, "subject", subject)
		return nil
	}

	headers := map[string]string{
		"From":         s.config.SMTPFrom,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var message bytes.Buffer
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Error("Failed to close SMTP client", "error", err)
		}
	}(client)

	// No authentication needed for local relays like Mailpit
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	defer func(wc io.WriteCloser) {
		if err := wc.Close(); err != nil {
			slog.Error("Failed to close message writer", "error", err)
		}
	}(wc)

	if _, err := wc.Write(message.Bytes()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	slog.Info("Email sent successfully", "to", to)

	return nil
}
