package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alertme/alertme/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var scanDay = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func dueIn(days int) string {
	return scanDay.AddDate(0, 0, days).Format(models.DueDateLayout)
}

type fakeSource struct {
	personal      []models.Deadline
	government    []models.Deadline
	personalErr   error
	governmentErr error
}

func (f *fakeSource) FetchPersonal(ctx context.Context) ([]models.Deadline, error) {
	return f.personal, f.personalErr
}

func (f *fakeSource) FetchGovernment(ctx context.Context) ([]models.Deadline, error) {
	return f.government, f.governmentErr
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]bool
	readErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]bool)}
}

func ledgerKey(r models.DeliveryRecord) string {
	return strings.Join([]string{r.DeadlineID, r.Channel, r.Tier, r.ScanDate}, "|")
}

func (f *fakeLedger) AlreadyDelivered(ctx context.Context, record models.DeliveryRecord) (bool, error) {
	if f.readErr != nil {
		return false, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[ledgerKey(record)], nil
}

func (f *fakeLedger) RecordDelivery(ctx context.Context, record *models.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[ledgerKey(*record)] = true
	return nil
}

type sentMessage struct {
	to      string
	subject string
	body    string
}

type fakeTransport struct {
	mu       sync.Mutex
	emails   []sentMessage
	sms      []sentMessage
	emailErr error
	smsErr   error

	// When set, SendEmail signals started and blocks until release closes.
	started chan struct{}
	release chan struct{}
}

func (f *fakeTransport) SendEmail(to, subject, body string) error {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.emailErr != nil {
		return f.emailErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, sentMessage{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeTransport) SendSMS(to, body string) error {
	if f.smsErr != nil {
		return f.smsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sms = append(f.sms, sentMessage{to: to, body: body})
	return nil
}

func newTestScanner(source *fakeSource, directory *fakeDirectory, ledger *fakeLedger, transport *fakeTransport) *ScannerService {
	s := NewScannerService(source, NewRecipientService(directory), ledger, transport, 2)
	s.now = func() time.Time { return scanDay }
	return s
}

func TestScanTaxFilingScenario(t *testing.T) {
	// Government deadline due in exactly 7 days; one subscriber resolves to
	// an email-only user, the other resolves to nothing.
	emailOnly := &models.User{ID: primitive.NewObjectID(), Name: "Aidos", Email: "a@x.com"}
	source := &fakeSource{
		government: []models.Deadline{{
			ID:          primitive.NewObjectID(),
			Title:       "Tax Filing",
			DueDate:     dueIn(7),
			Kind:        models.KindGovernment,
			Subscribers: []string{"a@x.com", "ghost-id"},
		}},
	}
	transport := &fakeTransport{}

	scanner := newTestScanner(source, newFakeDirectory(emailOnly), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.emails, 1)
	assert.Equal(t, "a@x.com", transport.emails[0].to)
	assert.Contains(t, transport.emails[0].subject, "URGENT")
	assert.Contains(t, transport.emails[0].subject, "Tax Filing")
	assert.Empty(t, transport.sms)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 1, report.Emails)
	assert.Equal(t, 0, report.SMS)
}

func TestScanMalformedDeadlineIsIsolated(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com", Phone: "+77001234567"}
	source := &fakeSource{
		personal: []models.Deadline{
			{
				ID:      primitive.NewObjectID(),
				Title:   "Broken",
				DueDate: "not-a-date",
				Kind:    models.KindPersonal,
				OwnerID: owner.ID,
			},
			{
				ID:      primitive.NewObjectID(),
				Title:   "Visa renewal",
				DueDate: dueIn(7),
				Kind:    models.KindPersonal,
				OwnerID: owner.ID,
			},
		},
	}
	transport := &fakeTransport{}

	scanner := newTestScanner(source, newFakeDirectory(owner), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.emails, 1)
	assert.Contains(t, transport.emails[0].subject, "URGENT")
	assert.Contains(t, transport.emails[0].subject, "Visa renewal")
	require.Len(t, transport.sms, 1)
	assert.Equal(t, "+77001234567", transport.sms[0].to)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 1, report.Errors)
}

func TestScanEmptySubscribersIsNoOp(t *testing.T) {
	source := &fakeSource{
		government: []models.Deadline{{
			ID:      primitive.NewObjectID(),
			Title:   "Census",
			DueDate: dueIn(0),
			Kind:    models.KindGovernment,
		}},
	}
	transport := &fakeTransport{}

	scanner := newTestScanner(source, newFakeDirectory(), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, transport.emails)
	assert.Empty(t, transport.sms)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 0, report.Errors)
}

func TestScanUnresolvedOwnerProducesNoDispatch(t *testing.T) {
	source := &fakeSource{
		personal: []models.Deadline{{
			ID:      primitive.NewObjectID(),
			Title:   "Dentist",
			DueDate: dueIn(1),
			Kind:    models.KindPersonal,
			OwnerID: primitive.NewObjectID(),
		}},
	}
	transport := &fakeTransport{}

	scanner := newTestScanner(source, newFakeDirectory(), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, transport.emails)
	assert.Empty(t, transport.sms)
	assert.Equal(t, 1, report.Errors)
}

func TestScanNonMilestoneDueDatesStaySilent(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com"}
	var personal []models.Deadline
	for _, days := range []int{-5, 2, 4, 14, 29, 31} {
		personal = append(personal, models.Deadline{
			ID:      primitive.NewObjectID(),
			Title:   "Quiet",
			DueDate: dueIn(days),
			Kind:    models.KindPersonal,
			OwnerID: owner.ID,
		})
	}
	transport := &fakeTransport{}

	scanner := newTestScanner(&fakeSource{personal: personal}, newFakeDirectory(owner), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, transport.emails)
	assert.Equal(t, 0, report.Fired)
	assert.Equal(t, 0, report.Errors)
}

func TestScanFetchFailureIsolatedPerCollection(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com"}
	source := &fakeSource{
		personalErr: errors.New("connection reset"),
		government: []models.Deadline{{
			ID:          primitive.NewObjectID(),
			Title:       "Tax Filing",
			DueDate:     dueIn(30),
			Kind:        models.KindGovernment,
			Subscribers: []string{"d@x.com"},
		}},
	}
	transport := &fakeTransport{}

	scanner := newTestScanner(source, newFakeDirectory(owner), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.emails, 1)
	assert.Contains(t, transport.emails[0].subject, "REMINDER")
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 0, report.Personal)
	assert.Equal(t, 1, report.Government)
}

func TestScanTransportFailureDoesNotBlockOtherChannel(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com", Phone: "+77001234567"}
	source := &fakeSource{
		personal: []models.Deadline{{
			ID:      primitive.NewObjectID(),
			Title:   "Visa renewal",
			DueDate: dueIn(3),
			Kind:    models.KindPersonal,
			OwnerID: owner.ID,
		}},
	}
	transport := &fakeTransport{emailErr: errors.New("smtp unavailable")}

	scanner := newTestScanner(source, newFakeDirectory(owner), newFakeLedger(), transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, transport.emails)
	require.Len(t, transport.sms, 1)
	assert.Equal(t, 1, report.SMS)
	assert.Equal(t, 1, report.Errors)
}

func TestScanLedgerSuppressesRepeatDispatch(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com"}
	source := &fakeSource{
		personal: []models.Deadline{{
			ID:      primitive.NewObjectID(),
			Title:   "Visa renewal",
			DueDate: dueIn(7),
			Kind:    models.KindPersonal,
			OwnerID: owner.ID,
		}},
	}
	transport := &fakeTransport{}
	ledger := newFakeLedger()

	scanner := newTestScanner(source, newFakeDirectory(owner), ledger, transport)

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Emails)

	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Emails)
	assert.Equal(t, 1, second.Duplicates)
	assert.Equal(t, 1, second.Fired, "classification is unchanged across identical scans")
	assert.Len(t, transport.emails, 1)
}

func TestScanLedgerReadFailureFailsOpen(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com"}
	source := &fakeSource{
		personal: []models.Deadline{{
			ID:      primitive.NewObjectID(),
			Title:   "Visa renewal",
			DueDate: dueIn(7),
			Kind:    models.KindPersonal,
			OwnerID: owner.ID,
		}},
	}
	transport := &fakeTransport{}
	ledger := newFakeLedger()
	ledger.readErr = errors.New("ledger unavailable")

	scanner := newTestScanner(source, newFakeDirectory(owner), ledger, transport)
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Emails)
}

func TestScanIsNotReentrant(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Dana", Email: "d@x.com"}
	source := &fakeSource{
		personal: []models.Deadline{{
			ID:      primitive.NewObjectID(),
			Title:   "Visa renewal",
			DueDate: dueIn(0),
			Kind:    models.KindPersonal,
			OwnerID: owner.ID,
		}},
	}
	transport := &fakeTransport{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	scanner := newTestScanner(source, newFakeDirectory(owner), newFakeLedger(), transport)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := scanner.Scan(context.Background())
		assert.NoError(t, err)
	}()

	<-transport.started
	_, err := scanner.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanInFlight)

	close(transport.release)
	<-done

	// Once the first scan finishes the guard is released again.
	_, err = scanner.Scan(context.Background())
	require.NoError(t, err)
}

func TestScanReportIsRetained(t *testing.T) {
	scanner := newTestScanner(&fakeSource{}, newFakeDirectory(), newFakeLedger(), &fakeTransport{})

	assert.Nil(t, scanner.LastReport())

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report, scanner.LastReport())
	assert.NotEmpty(t, report.RunID)
}
