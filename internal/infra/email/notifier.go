package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails terminal job failures to a fixed operator mailbox.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	send   sendFunc
	logger *zap.Logger
}

var _ port.FailureNotifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, videoID int64, videoKey, errorMsg string) error {
	if n.to == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("Rising Stars - Video Processing Failed [Video %d]", videoID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"A video processing job failed and was moved to the dead-letter queue.\r\n\r\n"+
			"Video ID: %d\r\n"+
			"Object: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"The record was left in the uploaded state.\r\n\r\n"+
			"-- Rising Stars Processing Worker",
		videoID, videoKey, errorMsg,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, body,
	)

	err := n.send(addr, nil, n.from, []string{n.to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", n.to),
			zap.Int64("video_id", videoID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", n.to),
		zap.Int64("video_id", videoID),
	)
	return nil
}
