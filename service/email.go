package service

import (
	"fmt"
	"html"

	"spendlens/config"

	"gopkg.in/gomail.v2"
)

// Mailer 认证流程使用的邮件发送能力
type Mailer interface {
	SendPasswordResetEmail(toEmail, resetLink string) error
	SendVerificationEmail(toEmail, code, purpose string) error
}

// EmailService 邮件服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendPasswordResetEmail 发送密码重置邮件
func (s *EmailService) SendPasswordResetEmail(toEmail, resetLink string) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("email service is disabled, set SPENDLENS_EMAIL_ENABLED=true")
	}

	subject := "[Spendlens] Reset your password"
	body := s.generateResetEmailBody(toEmail, resetLink)

	return s.sendEmail(toEmail, subject, body)
}

// generateResetEmailBody 生成重置邮件内容
func (s *EmailService) generateResetEmailBody(toEmail, resetLink string) string {
	link := html.EscapeString(resetLink)
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #2563eb, #1d4ed8); color: white; padding: 30px; text-align: center; }
        .content { padding: 40px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        .btn { display: inline-block; background: #2563eb; color: white !important; text-decoration: none; padding: 14px 40px; border-radius: 8px; font-weight: 600; }
        .warning { background: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; border-radius: 4px; color: #856404; font-size: 14px; }
        .link { word-break: break-all; color: #2563eb; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Spendlens</h1></div>
        <div class="content">
            <p>Hi <strong>%s</strong>,</p>
            <p>We received a request to reset your password. Click the button below to choose a new one:</p>
            <p style="text-align: center;"><a href="%s" class="btn">Reset password</a></p>
            <div class="warning">This link expires in <strong>30 minutes</strong>. If you did not ask for a reset, ignore this email.</div>
            <p>If the button does not work, copy this link into your browser:</p>
            <p class="link">%s</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(toEmail), link, link)
}

// SendVerificationEmail 发送邮箱验证码，purpose 为 signup 或 recovery
func (s *EmailService) SendVerificationEmail(toEmail, code, purpose string) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("email service is disabled, set SPENDLENS_EMAIL_ENABLED=true")
	}

	subject := "[Spendlens] Your verification code"
	body := s.generateVerificationEmailBody(code, purpose)

	return s.sendEmail(toEmail, subject, body)
}

// generateVerificationEmailBody 生成验证码邮件内容
func (s *EmailService) generateVerificationEmailBody(code, purpose string) string {
	purposeText := "verify your email address"
	switch purpose {
	case "signup":
		purposeText = "finish creating your account"
	case "recovery":
		purposeText = "reset your password"
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: linear-gradient(135deg, #10b981, #059669); color: white; padding: 30px; text-align: center; }
        .content { padding: 40px 30px; }
        .code { font-size: 36px; font-weight: bold; color: #059669; letter-spacing: 8px; font-family: 'Courier New', monospace; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Spendlens</h1></div>
        <div class="content">
            <p>Use the code below to %s:</p>
            <p style="text-align: center;"><span class="code">%s</span></p>
            <p>The code expires in <strong>10 minutes</strong>. If this was not you, ignore this email.</p>
        </div>
    </div>
</body>
</html>
`, purposeText, code)
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
