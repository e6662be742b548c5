package action

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer 基于SMTP的邮件发送实现（对外导出）
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer 创建SMTP发送器（对外导出的工厂方法）
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp_host不能为空")
	}
	if from == "" {
		return nil, fmt.Errorf("from不能为空")
	}
	if port <= 0 {
		port = 25
	}
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}, nil
}

// Send 发送邮件（实现Mailer接口）
func (m *SMTPMailer) Send(to, subject, body string) error {
	message := m.buildMessage(to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	// 配置了用户名和密码时使用认证
	if m.username != "" && m.password != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)

		// 465端口需要先建立TLS连接
		if m.port == 465 {
			return m.sendTLS(addr, auth, to, message)
		}

		return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(message))
	}

	// 无认证发送（仅用于测试环境）
	return smtp.SendMail(addr, nil, m.from, []string{to}, []byte(message))
}

// sendTLS 通过TLS发送邮件（内部方法，用于465端口）
func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, to, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: m.host,
	})
	if err != nil {
		return fmt.Errorf("TLS连接失败: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP认证失败: %w", err)
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("获取数据写入器失败: %w", err)
	}
	if _, err := writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("写入邮件内容失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("关闭数据写入器失败: %w", err)
	}

	return client.Quit()
}

// buildMessage 构建邮件消息（内部方法）
func (m *SMTPMailer) buildMessage(to, subject, body string) string {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", m.from))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}
