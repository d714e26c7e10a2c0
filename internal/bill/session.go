package bill

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rgeorge/splittab/internal/scanning"
)

// DefaultServiceFeeRate is the venue service charge applied by
// ApplyDefaultServiceFee, as a fraction of the item sum.
const DefaultServiceFeeRate = 0.10

// IDGenerator generates unique IDs for bills, items and participants
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Session owns the single in-progress bill and enforces which operations are
// legal at each step. Every mutation requires an in-progress bill and fails
// closed, leaving the previous state observable.
type Session struct {
	mu   sync.Mutex
	step Step
	bill *Bill

	db          DB
	analyzer    scanning.Analyzer
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	analyzeTimeout time.Duration

	// A new upload supersedes any analysis still in flight: the old context
	// is cancelled and the old result, should it still arrive, is discarded.
	uploadSeq      uint64
	cancelAnalysis context.CancelFunc
}

// NewSession creates a Session with default ID generator and time source
func NewSession(db DB, analyzer scanning.Analyzer, storage Storage, analyzeTimeout time.Duration) *Session {
	return NewSessionWithDeps(db, analyzer, storage, analyzeTimeout, &uuidGenerator{}, &defaultTimeSource{})
}

// NewSessionWithDeps creates a Session with custom dependencies for testing
func NewSessionWithDeps(db DB, analyzer scanning.Analyzer, storage Storage, analyzeTimeout time.Duration, idGen IDGenerator, timeSrc TimeSource) *Session {
	if analyzeTimeout <= 0 {
		analyzeTimeout = 60 * time.Second
	}
	return &Session{
		step:           StepUploadReceipt,
		db:             db,
		analyzer:       analyzer,
		storage:        storage,
		idGenerator:    idGen,
		timeSource:     timeSrc,
		analyzeTimeout: analyzeTimeout,
	}
}

// Current returns the session step and the in-progress bill, which is nil
// outside the edit/summary flow
func (s *Session) Current() (Step, *Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step, s.bill
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating phone-generated long names
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// StartBill begins a new splitting session from an uploaded receipt: the
// image is stored, the analyzer extracts line items, and the session moves
// to the edit step. A new upload cancels any analysis still in flight.
//
// When the analyzer fails, the bill is still created (empty) and returned
// alongside the error so the user can enter items by hand; only storage
// failures and superseded uploads return a nil bill.
func (s *Session) StartBill(filename string, data []byte, contentType string, description string) (*Bill, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if !scanning.SupportedContentType(ct, data) {
		return nil, ErrUnsupportedFile
	}

	s.mu.Lock()
	if s.cancelAnalysis != nil {
		s.cancelAnalysis()
	}
	s.uploadSeq++
	seq := s.uploadSeq
	ctx, cancel := context.WithTimeout(context.Background(), s.analyzeTimeout)
	s.cancelAnalysis = cancel
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	s.mu.Unlock()
	defer cancel()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving receipt image: %w", err)
	}

	// The lock is released during the network call so a newer upload can
	// cancel this one
	extraction, analyzeErr := s.analyzer.AnalyzeReceipt(ctx, data, ct)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.uploadSeq {
		s.storage.Delete(savedPath)
		return nil, ErrAnalysisSuperseded
	}
	s.cancelAnalysis = nil

	b := &Bill{
		ID:                 id,
		CreatedAt:          now,
		Description:        strings.TrimSpace(description),
		ReceiptImage:       savedPath,
		ReceiptContentType: ct,
		Items:              []Item{},
		Participants:       []Participant{},
		Assignments:        make(map[string]string),
	}

	if analyzeErr != nil {
		slog.Error("Receipt analysis failed",
			"filename", filename,
			"content_type", ct,
			"file_size", len(data),
			"error", analyzeErr,
		)
		s.bill = b
		s.step = StepEditBillDetails
		return b, fmt.Errorf("analyzing receipt: %w", analyzeErr)
	}

	for _, extracted := range extraction.Items {
		b.Items = append(b.Items, Item{
			ID:       s.idGenerator.Generate(),
			Name:     extracted.Name,
			Quantity: extracted.Quantity,
			Price:    extracted.Price,
		})
	}
	b.TaxAmount = extraction.Tax
	b.ServiceFeeAmount = extraction.ServiceFee

	s.bill = b
	s.step = StepEditBillDetails
	return b, nil
}

// Discard abandons the in-progress bill and returns to the upload step. Any
// analysis still in flight is cancelled and its result dropped.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

func (s *Session) discardLocked() {
	if s.cancelAnalysis != nil {
		s.cancelAnalysis()
		s.cancelAnalysis = nil
	}
	s.uploadSeq++
	if s.bill != nil && s.bill.ReceiptImage != "" {
		if err := s.storage.Delete(s.bill.ReceiptImage); err != nil {
			slog.Warn("Failed to delete receipt image", "filename", s.bill.ReceiptImage, "error", err)
		}
	}
	s.bill = nil
	s.step = StepUploadReceipt
}

// AddParticipant adds a participant to the in-progress bill. Names are
// unique case-insensitively within a bill.
func (s *Session) AddParticipant(name string) (*Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return nil, ErrNoBill
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyParticipantName
	}
	if s.bill.HasParticipantNamed(name) {
		return nil, &DuplicateParticipantError{Name: name}
	}
	p := Participant{ID: s.idGenerator.Generate(), Name: name}
	s.bill.Participants = append(s.bill.Participants, p)
	return &p, nil
}

// RemoveParticipant removes a participant and reverts every item assigned to
// them to unassigned. The items themselves stay on the bill.
func (s *Session) RemoveParticipant(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return ErrNoBill
	}
	i := s.bill.participantIndex(id)
	if i == -1 {
		return ErrParticipantNotFound
	}
	s.bill.Participants = append(s.bill.Participants[:i], s.bill.Participants[i+1:]...)
	for itemID, pid := range s.bill.Assignments {
		if pid == id {
			delete(s.bill.Assignments, itemID)
		}
	}
	return nil
}

// AddItem appends an item to the in-progress bill. Price is the line total;
// invalid quantity and price are coerced the same way analyzer output is.
func (s *Session) AddItem(name string, quantity int, price float64) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return nil, ErrNoBill
	}
	item, err := makeItem(s.idGenerator.Generate(), name, quantity, price)
	if err != nil {
		return nil, err
	}
	s.bill.Items = append(s.bill.Items, item)
	return &item, nil
}

// UpdateItem replaces an item's name, quantity and price in place. The
// item's position and assignment are preserved.
func (s *Session) UpdateItem(id string, name string, quantity int, price float64) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return nil, ErrNoBill
	}
	i := s.bill.itemIndex(id)
	if i == -1 {
		return nil, ErrItemNotFound
	}
	item, err := makeItem(id, name, quantity, price)
	if err != nil {
		return nil, err
	}
	s.bill.Items[i] = item
	return &item, nil
}

func makeItem(id string, name string, quantity int, price float64) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, ErrEmptyItemName
	}
	if quantity < 1 {
		quantity = 1
	}
	if price < 0 {
		price = 0
	}
	return Item{ID: id, Name: name, Quantity: quantity, Price: price}, nil
}

// RemoveItem removes an item and its assignment, if any
func (s *Session) RemoveItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return ErrNoBill
	}
	i := s.bill.itemIndex(id)
	if i == -1 {
		return ErrItemNotFound
	}
	s.bill.Items = append(s.bill.Items[:i], s.bill.Items[i+1:]...)
	delete(s.bill.Assignments, id)
	return nil
}

// AssignItem assigns an item to a participant. An empty participant ID
// reverts the item to unassigned. Both sides are validated so an assignment
// can never dangle.
func (s *Session) AssignItem(itemID string, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return ErrNoBill
	}
	if s.bill.itemIndex(itemID) == -1 {
		return ErrItemNotFound
	}
	if participantID == "" {
		delete(s.bill.Assignments, itemID)
		return nil
	}
	if s.bill.participantIndex(participantID) == -1 {
		return ErrParticipantNotFound
	}
	s.bill.Assignments[itemID] = participantID
	return nil
}

// SetCharges updates the tax and service fee amounts. Nil leaves a field
// unchanged; negative amounts clamp to zero.
func (s *Session) SetCharges(taxAmount *float64, serviceFeeAmount *float64) (*Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return nil, ErrNoBill
	}
	if taxAmount != nil {
		s.bill.TaxAmount = max(*taxAmount, 0)
	}
	if serviceFeeAmount != nil {
		s.bill.ServiceFeeAmount = max(*serviceFeeAmount, 0)
	}
	return s.bill, nil
}

// ApplyDefaultServiceFee sets the service fee to DefaultServiceFeeRate of
// the item sum. Rejected when the items sum to zero, since a percentage of
// nothing is meaningless.
func (s *Session) ApplyDefaultServiceFee() (*Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bill == nil {
		return nil, ErrNoBill
	}
	sum := s.bill.ItemSum()
	if sum == 0 {
		return nil, ErrZeroItemSum
	}
	s.bill.ServiceFeeAmount = sum * DefaultServiceFeeRate
	return s.bill, nil
}

// summaryGates validates the preconditions for leaving the edit step. Each
// failure is a distinct user-facing error and leaves the step unchanged.
func summaryGates(b *Bill) error {
	if b == nil {
		return ErrNoBill
	}
	if len(b.Participants) == 0 {
		return ErrNoParticipants
	}
	if len(b.Items) == 0 {
		return ErrNoItems
	}
	if n := b.UnassignedCount(); n > 0 {
		return &UnassignedItemsError{Count: n}
	}
	return nil
}

// Summary validates the gates, computes the shares and moves the session to
// the summary step. Retryable: fixing the failed condition and calling again
// succeeds.
func (s *Session) Summary() (*Bill, []ParticipantShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := summaryGates(s.bill); err != nil {
		return nil, nil, err
	}
	s.step = StepViewSummary
	return s.bill, Allocate(s.bill), nil
}

// Save computes the shares one final time, freezes them into a stored bill,
// appends it to history and resets the session for the next receipt. The
// frozen shares are never recomputed, even if the allocation rules change in
// a later build.
func (s *Session) Save() (*StoredBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := summaryGates(s.bill); err != nil {
		return nil, err
	}

	stored := &StoredBill{
		SchemaVersion:    SchemaVersion,
		Bill:             *s.bill,
		CalculatedShares: Allocate(s.bill),
		SavedAt:          s.timeSource.Now(),
	}
	if err := s.db.SaveBill(stored); err != nil {
		// Fail closed: the in-progress bill survives a storage fault
		return nil, fmt.Errorf("saving bill to history: %w", err)
	}

	s.bill = nil
	s.step = StepUploadReceipt
	return stored, nil
}

// History moves to the history step and returns all stored bills, newest
// first. History is reachable at any time; a storage fault degrades to an
// empty list rather than failing the session.
func (s *Session) History() []*StoredBill {
	s.mu.Lock()
	s.step = StepViewHistory
	s.mu.Unlock()

	bills, err := s.db.ListBills()
	if err != nil {
		slog.Error("Failed to list bill history", "error", err)
		return []*StoredBill{}
	}
	return bills
}

// ViewStored opens a historical bill in the summary step. The view is
// read-only and uses the shares frozen at save time.
func (s *Session) ViewStored(id string) (*StoredBill, error) {
	stored, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting stored bill: %w", err)
	}

	s.mu.Lock()
	s.step = StepViewSummary
	s.mu.Unlock()
	return stored, nil
}

// StoredImage returns the receipt image saved with a historical bill
func (s *Session) StoredImage(id string) ([]byte, string, error) {
	stored, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting stored bill: %w", err)
	}
	if stored.ReceiptImage == "" {
		return nil, "", fmt.Errorf("bill %s has no receipt image", id)
	}
	data, err := s.storage.Get(stored.ReceiptImage)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt image: %w", err)
	}
	return data, stored.ReceiptContentType, nil
}

// DeleteStored removes a bill from history along with its receipt image
func (s *Session) DeleteStored(id string) error {
	stored, err := s.db.GetBill(id)
	if err != nil {
		return fmt.Errorf("getting stored bill for deletion: %w", err)
	}

	if stored.ReceiptImage != "" {
		if err := s.storage.Delete(stored.ReceiptImage); err != nil {
			// Keep going; a stranded image file is better than a stuck delete
			slog.Warn("Failed to delete receipt image", "filename", stored.ReceiptImage, "error", err)
		}
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from history: %w", err)
	}
	return nil
}

// ClearHistory removes every stored bill and resets the session to the
// upload step, discarding any in-progress bill
func (s *Session) ClearHistory() error {
	bills, err := s.db.ListBills()
	if err != nil {
		slog.Warn("Failed to list bills while clearing history", "error", err)
	}
	for _, stored := range bills {
		if stored.ReceiptImage == "" {
			continue
		}
		if err := s.storage.Delete(stored.ReceiptImage); err != nil {
			slog.Warn("Failed to delete receipt image", "filename", stored.ReceiptImage, "error", err)
		}
	}

	if err := s.db.DeleteAllBills(); err != nil {
		return fmt.Errorf("clearing bill history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	return nil
}
