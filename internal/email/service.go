package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"classifieds/internal/logger"
	"classifieds/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
)

type EmailJob struct {
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type ReceiptKind string

const (
	ReceiptPromotion  ReceiptKind = "promotion"
	ReceiptMembership ReceiptKind = "membership"
	ReceiptTopup      ReceiptKind = "topup"
)

// Receipt describes a fulfilled purchase.
type Receipt struct {
	To        string
	Kind      ReceiptKind
	Item      string
	Reference string
	Amount    decimal.Decimal
	Currency  string
	ValidTo   *time.Time
}

type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
	retryIn  time.Duration
}

func New(rdb *redis.Client, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass string) *Service {
	return &Service{
		redis:    rdb,
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
		retryIn:  5 * time.Second,
	}
}

func (s *Service) Send(ctx context.Context, to, kind, subject, body string) error {
	job := EmailJob{
		To:      to,
		Kind:    kind,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		metrics.RecordEmail(kind, "queue_error")
		return err
	}

	metrics.RecordEmail(kind, "queued")
	logger.Infof("Email queued: %s to %s", subject, to)
	return nil
}

// SendReceipt queues the purchase confirmation for a fulfilled session.
func (s *Service) SendReceipt(ctx context.Context, r Receipt) error {
	subject, body := renderReceipt(r)
	return s.Send(ctx, r.To, string(r.Kind), subject, body)
}

func renderReceipt(r Receipt) (string, string) {
	amount := r.Amount.StringFixed(2)
	if r.Currency != "" {
		amount += " " + r.Currency
	}

	var subject, headline string
	switch r.Kind {
	case ReceiptPromotion:
		subject = "Your listing promotion is live"
		headline = fmt.Sprintf("Your listing is now promoted with %s.", r.Item)
	case ReceiptMembership:
		subject = "Your membership is active"
		headline = fmt.Sprintf("Your %s membership is now active.", r.Item)
	case ReceiptTopup:
		subject = "Credits added to your wallet"
		headline = fmt.Sprintf("%s credits were added to your wallet.", r.Amount.StringFixed(2))
	default:
		subject = "Payment received"
		headline = "We received your payment."
	}

	body := fmt.Sprintf("Hi,\n\n%s\n\nAmount: %s\nReference: %s\n", headline, amount, r.Reference)
	if r.ValidTo != nil {
		body += fmt.Sprintf("Valid until: %s\n", r.ValidTo.Format("Jan 2, 2006"))
	}
	body += "\nThank you for your purchase.\n\n- Classifieds Team"

	return subject, body
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Email service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}
	metrics.EmailQueueLength.Set(float64(s.QueueLength(ctx)))

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Debug("sending email", "to", job.To, "attempt", job.Tries)
	if err := s.sendNow(job); err != nil {
		logger.Error("email delivery failed", "to", job.To, "attempt", job.Tries, "error", err)
		s.retry(ctx, job, err)
		return
	}

	metrics.RecordEmail(job.Kind, "sent")
	logger.Infof("Email sent successfully to %s", job.To)
}

func (s *Service) retry(ctx context.Context, job EmailJob, cause error) {
	if job.Tries >= maxTries {
		metrics.RecordEmail(job.Kind, "failed")
		s.saveFailed(ctx, job, cause)
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.retryIn):
	}

	data, _ := json.Marshal(job)
	if err := s.redis.LPush(context.WithoutCancel(ctx), queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to requeue email to %s: %v", job.To, err)
	}
}

func (s *Service) sendNow(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(ctx context.Context, job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, data)
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}
