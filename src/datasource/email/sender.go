// sender.go
package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"

	mailer "github.com/jordan-wright/email"

	"CarAds/src/config"
)

// defaultSMTPPort 服务器地址未带端口时使用SSL端口
const defaultSMTPPort = "465"

// BuildReportEmail 组装带附件的报告邮件
func BuildReportEmail(c *config.Config, body, attachmentPath string) (*mailer.Email, error) {
	if len(c.SendEmail.To) == 0 {
		return nil, fmt.Errorf("没有配置收件人")
	}

	e := mailer.NewEmail()
	e.From = fmt.Sprintf("Vehicle Ads <%s>", c.SendEmail.Username)
	e.To = c.SendEmail.To
	e.Subject = c.SendEmail.Subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err != nil {
			return nil, fmt.Errorf("附件文件不存在: %s", attachmentPath)
		}
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

// SendReport 通过SMTP(显式TLS)发送报告
func SendReport(c *config.Config, body, attachmentPath string) error {
	e, err := BuildReportEmail(c, body, attachmentPath)
	if err != nil {
		return err
	}

	addr := c.SendEmail.Server
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		addr = net.JoinHostPort(addr, defaultSMTPPort)
	}

	err = e.SendWithTLS(
		addr,
		smtp.PlainAuth("", c.SendEmail.Username, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
	}
	return nil
}
