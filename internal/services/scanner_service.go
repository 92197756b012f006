package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alertme/alertme/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrScanInFlight is returned when Scan is invoked while a previous scan is
// still running. Scans are non-reentrant.
var ErrScanInFlight = errors.New("deadline scan already in progress")

// DeadlineSource yields the current snapshot of tracked deadlines.
// A failure fetching one collection must not prevent processing the other.
type DeadlineSource interface {
	FetchPersonal(ctx context.Context) ([]models.Deadline, error)
	FetchGovernment(ctx context.Context) ([]models.Deadline, error)
}

// RecipientResolver maps owners and subscriber identifiers to recipients.
type RecipientResolver interface {
	ResolveOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Recipient, error)
	ResolveSubscribers(ctx context.Context, subscribers []string) []models.Recipient
}

// DeliveryLedger is the idempotency cache consulted before dispatch and
// written after a successful send.
type DeliveryLedger interface {
	AlreadyDelivered(ctx context.Context, record models.DeliveryRecord) (bool, error)
	RecordDelivery(ctx context.Context, record *models.DeliveryRecord) error
}

// Transport sends a rendered message over one channel.
type Transport interface {
	SendEmail(to, subject, body string) error
	SendSMS(to, body string) error
}

// ScanReport summarizes one completed scan.
type ScanReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Personal   int       `json:"personal_deadlines"`
	Government int       `json:"government_deadlines"`
	Fired      int       `json:"fired"`
	Emails     int       `json:"emails_sent"`
	SMS        int       `json:"sms_sent"`
	Duplicates int       `json:"duplicates_skipped"`
	Errors     int       `json:"errors"`
}

type scanOutcome struct {
	fired      bool
	emails     int
	sms        int
	duplicates int
	errors     int
}

// ScannerService is the scan orchestrator: it iterates every deadline,
// classifies urgency, resolves recipients, composes messages and dispatches
// them, isolating every per-item failure so a single bad record can never
// abort the run.
type ScannerService struct {
	deadlines DeadlineSource
	resolver  RecipientResolver
	ledger    DeliveryLedger
	transport Transport
	workers   int

	running atomic.Bool

	mu         sync.Mutex
	lastReport *ScanReport

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewScannerService creates a new instance of ScannerService. workers bounds
// how many deadlines are processed concurrently.
func NewScannerService(deadlines DeadlineSource, resolver RecipientResolver, ledger DeliveryLedger, transport Transport, workers int) *ScannerService {
	if workers < 1 {
		workers = 1
	}
	return &ScannerService{
		deadlines: deadlines,
		resolver:  resolver,
		ledger:    ledger,
		transport: transport,
		workers:   workers,
		now:       time.Now,
	}
}

// LastReport returns the report of the most recently completed scan, or nil
// if none has run yet.
func (s *ScannerService) LastReport() *ScanReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// Scan runs one full pass over all deadlines, dispatching due reminders.
// It returns ErrScanInFlight when called while another scan is running.
func (s *ScannerService) Scan(ctx context.Context) (*ScanReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInFlight
	}
	defer s.running.Store(false)

	report := &ScanReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	today := report.StartedAt

	logrus.WithField("runID", report.RunID).Info("Deadline scan started")

	personal, err := s.deadlines.FetchPersonal(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch personal deadlines, treating collection as empty")
		report.Errors++
		personal = nil
	}
	government, err := s.deadlines.FetchGovernment(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch government deadlines, treating collection as empty")
		report.Errors++
		government = nil
	}
	report.Personal = len(personal)
	report.Government = len(government)

	jobs := make(chan models.Deadline)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for deadline := range jobs {
				outcome := s.processDeadline(ctx, deadline, today)
				s.mu.Lock()
				if outcome.fired {
					report.Fired++
				}
				report.Emails += outcome.emails
				report.SMS += outcome.sms
				report.Duplicates += outcome.duplicates
				report.Errors += outcome.errors
				s.mu.Unlock()
			}
		}()
	}

	for _, deadline := range personal {
		jobs <- deadline
	}
	for _, deadline := range government {
		jobs <- deadline
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = s.now()

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"runID":      report.RunID,
		"personal":   report.Personal,
		"government": report.Government,
		"fired":      report.Fired,
		"emails":     report.Emails,
		"sms":        report.SMS,
		"duplicates": report.Duplicates,
		"errors":     report.Errors,
	}).Info("Deadline scan completed")

	return report, nil
}

// processDeadline handles a single deadline end to end. All failures stay
// inside this boundary: they are logged, counted and swallowed.
func (s *ScannerService) processDeadline(ctx context.Context, deadline models.Deadline, today time.Time) (outcome scanOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"deadlineID": deadline.ID.Hex(),
				"title":      deadline.Title,
				"panic":      r,
			}).Error("Panic while processing deadline")
			outcome.errors++
		}
	}()

	if deadline.Title == "" {
		logrus.WithField("deadlineID", deadline.ID.Hex()).Warn("Skipping deadline with empty title")
		outcome.errors++
		return outcome
	}

	classification, fire, err := ClassifyDeadline(deadline, today)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"deadlineID": deadline.ID.Hex(),
			"title":      deadline.Title,
			"dueDate":    deadline.DueDate,
			"error":      err,
		}).Warn("Skipping deadline with unparseable due date")
		outcome.errors++
		return outcome
	}
	if !fire {
		return outcome
	}
	outcome.fired = true

	logrus.WithFields(logrus.Fields{
		"deadlineID": deadline.ID.Hex(),
		"title":      deadline.Title,
		"daysUntil":  classification.DaysUntil,
		"tier":       classification.Tier.Label(),
	}).Info("Deadline reminder due")

	for _, recipient := range s.resolveRecipients(ctx, deadline, &outcome) {
		s.dispatch(ctx, deadline, recipient, classification, today, &outcome)
	}
	return outcome
}

func (s *ScannerService) resolveRecipients(ctx context.Context, deadline models.Deadline, outcome *scanOutcome) []models.Recipient {
	if deadline.Kind == models.KindGovernment {
		if len(deadline.Subscribers) == 0 {
			logrus.WithField("title", deadline.Title).Info("No subscribers for government deadline")
			return nil
		}
		return s.resolver.ResolveSubscribers(ctx, deadline.Subscribers)
	}

	recipient, err := s.resolver.ResolveOwner(ctx, deadline.OwnerID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"deadlineID": deadline.ID.Hex(),
			"ownerID":    deadline.OwnerID.Hex(),
			"error":      err,
		}).Warn("Could not resolve deadline owner")
		outcome.errors++
		return nil
	}
	return []models.Recipient{*recipient}
}

// dispatch sends the composed message over every channel the recipient has.
// A missing channel is skipped, a failed one is logged; neither stops the
// other channel or the remaining recipients.
func (s *ScannerService) dispatch(ctx context.Context, deadline models.Deadline, recipient models.Recipient, classification Classification, today time.Time, outcome *scanOutcome) {
	message := Compose(deadline, recipient, classification)

	if recipient.Email != "" {
		sent := s.deliver(ctx, deadline, classification, today, models.ChannelEmail, recipient.Email, outcome, func() error {
			return s.transport.SendEmail(recipient.Email, message.EmailSubject, message.EmailBody)
		})
		if sent {
			outcome.emails++
			logrus.WithFields(logrus.Fields{
				"to":    recipient.Email,
				"title": deadline.Title,
			}).Info("Email reminder sent")
		}
	}

	if recipient.Phone != "" {
		sent := s.deliver(ctx, deadline, classification, today, models.ChannelSMS, recipient.Phone, outcome, func() error {
			return s.transport.SendSMS(recipient.Phone, message.SMSBody)
		})
		if sent {
			outcome.sms++
			logrus.WithFields(logrus.Fields{
				"to":    recipient.Phone,
				"title": deadline.Title,
			}).Info("SMS reminder sent")
		}
	}
}

func (s *ScannerService) deliver(ctx context.Context, deadline models.Deadline, classification Classification, today time.Time, channel, address string, outcome *scanOutcome, send func() error) bool {
	record := models.DeliveryRecord{
		DeadlineID: deadline.ID.Hex(),
		Channel:    channel + ":" + address,
		Tier:       classification.Tier.Label(),
		ScanDate:   today.Format(models.DueDateLayout),
	}

	// A ledger read failure fails open: a duplicate reminder beats a missed
	// one.
	delivered, err := s.ledger.AlreadyDelivered(ctx, record)
	if err != nil {
		logrus.WithError(err).Warn("Delivery ledger check failed, dispatching anyway")
	} else if delivered {
		outcome.duplicates++
		return false
	}

	if err := send(); err != nil {
		logrus.WithFields(logrus.Fields{
			"deadlineID": deadline.ID.Hex(),
			"title":      deadline.Title,
			"channel":    channel,
			"error":      err,
		}).Error("Failed to dispatch reminder")
		outcome.errors++
		return false
	}

	if err := s.ledger.RecordDelivery(ctx, &record); err != nil {
		logrus.WithError(err).Warn("Failed to record delivery in ledger")
	}
	return true
}
