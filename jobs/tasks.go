package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/phoenix-bikes/biketrack/internal/donations"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMail carries outgoing email.
	QueueMail = "mail"
	// TaskDonationReceipt sends the receipt for a recorded donation.
	TaskDonationReceipt = "donation:receipt"
	// TaskIdempotencyCleanup purges old form submission keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email",
		slog.String("from", msg.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// NewReceiptTask constructs the receipt task for a donation.
func NewReceiptTask(receipt donations.Receipt) (*asynq.Task, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDonationReceipt, data,
		asynq.Queue(QueueMail),
		asynq.MaxRetry(5),
		asynq.TaskID("receipt:"+receipt.DonationID.String()),
	), nil
}

var printer = message.NewPrinter(language.AmericanEnglish)

// ComposeReceipt renders the receipt email for a donation.
func ComposeReceipt(from string, r donations.Receipt) Message {
	var b strings.Builder
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = "friend"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	b.WriteString("Thank you for your donation to Phoenix Bikes.\n\n")
	fmt.Fprintf(&b, "Donation: %s\n", r.DonationID)
	fmt.Fprintf(&b, "Type: %s\n", r.Type)
	b.WriteString(printer.Sprintf("Estimated value: $%.2f\n", r.TotalValue))
	if r.TaxDeductible {
		b.WriteString("\nNo goods or services were provided in exchange for this gift. ")
		b.WriteString("Please keep this receipt for your tax records.\n")
	}
	return Message{
		From:    from,
		To:      r.Email,
		Subject: "Your Phoenix Bikes donation receipt",
		Body:    b.String(),
	}
}

// ReceiptJob sends donation receipts.
type ReceiptJob struct {
	Mailer  Mailer
	From    string
	Logger  *slog.Logger
	Metrics ReceiptMetrics
}

// ReceiptMetrics is the subset of job metrics the receipt job records.
type ReceiptMetrics interface {
	Receipt(outcome string)
}

// Handle processes TaskDonationReceipt tasks.
func (j *ReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	var receipt donations.Receipt
	if err := json.Unmarshal(t.Payload(), &receipt); err != nil {
		j.record("skipped")
		return fmt.Errorf("receipt: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(receipt.Email) == "" {
		j.record("skipped")
		return fmt.Errorf("receipt %s: no email: %w", receipt.DonationID, asynq.SkipRetry)
	}
	if err := j.Mailer.Send(ctx, ComposeReceipt(j.From, receipt)); err != nil {
		j.record("failed")
		j.logger().Warn("send receipt", slog.String("donation_id", receipt.DonationID.String()), slog.Any("error", err))
		return fmt.Errorf("receipt %s: %w", receipt.DonationID, err)
	}
	j.record("sent")
	return nil
}

func (j *ReceiptJob) record(outcome string) {
	if j.Metrics != nil {
		j.Metrics.Receipt(outcome)
	}
}

func (j *ReceiptJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// Cleaner removes idempotency keys older than a retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// CleanupPayload configures an idempotency cleanup run.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewCleanupTask builds the scheduled cleanup task.
func NewCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

// CleanupJob purges idempotency keys.
type CleanupJob struct {
	Store  Cleaner
	Logger *slog.Logger
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 72
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if j.Logger != nil {
		j.Logger.Info("idempotency keys purged", slog.Duration("retention", retention))
	}
	return nil
}
