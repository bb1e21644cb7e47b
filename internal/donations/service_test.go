package donations

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

type memoryRepo struct {
	calls     []string
	donors    map[string]uuid.UUID
	donations []Donation
	bikes     []BikeDetail
	parts     []PartsDetail
	failOn    string
	txCount   int
	listed    []Donor
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{donors: make(map[string]uuid.UUID)}
}

// memoryTx stages writes and publishes them only when the callback succeeds.
type memoryTx struct {
	repo      *memoryRepo
	donors    map[string]uuid.UUID
	donations []Donation
	bikes     []BikeDetail
	parts     []PartsDetail
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txCount++
	tx := &memoryTx{repo: r, donors: make(map[string]uuid.UUID)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for email, id := range tx.donors {
		r.donors[email] = id
	}
	r.donations = append(r.donations, tx.donations...)
	r.bikes = append(r.bikes, tx.bikes...)
	r.parts = append(r.parts, tx.parts...)
	return nil
}

func (r *memoryRepo) ListDonations(context.Context, int) ([]Donation, error) {
	return r.donations, nil
}

func (r *memoryRepo) ListDonors(context.Context) ([]Donor, error) {
	return r.listed, nil
}

func (tx *memoryTx) step(name string) error {
	tx.repo.calls = append(tx.repo.calls, name)
	if tx.repo.failOn == name {
		return shared.QueryFailed("memory: "+name, errors.New("boom"))
	}
	return nil
}

func (tx *memoryTx) UpsertDonor(_ context.Context, donor DonorInput) (uuid.UUID, error) {
	if err := tx.step("donor"); err != nil {
		return uuid.Nil, err
	}
	id, ok := tx.repo.donors[donor.Email]
	if !ok {
		id = uuid.New()
	}
	tx.donors[donor.Email] = id
	return id, nil
}

func (tx *memoryTx) InsertDonation(_ context.Context, d Donation) (uuid.UUID, error) {
	if err := tx.step("donation"); err != nil {
		return uuid.Nil, err
	}
	d.ID = uuid.New()
	tx.donations = append(tx.donations, d)
	return d.ID, nil
}

func (tx *memoryTx) InsertBikeDonated(_ context.Context, _ uuid.UUID, bike BikeDetail) error {
	if err := tx.step("bike"); err != nil {
		return err
	}
	tx.bikes = append(tx.bikes, bike)
	return nil
}

func (tx *memoryTx) InsertPartsDonated(_ context.Context, _ uuid.UUID, parts PartsDetail) error {
	if err := tx.step("parts"); err != nil {
		return err
	}
	tx.parts = append(tx.parts, parts)
	return nil
}

type memoryIdem struct {
	keys    map[string]bool
	deleted []string
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type memoryQueue struct {
	receipts []Receipt
}

func (q *memoryQueue) EnqueueReceipt(_ context.Context, r Receipt) error {
	q.receipts = append(q.receipts, r)
	return nil
}

var salesDesk = rbac.NewPrincipal(uuid.New(), "desk@example.org", rbac.RoleSales)

func bothSubmission() Submission {
	return Submission{
		Donor: DonorInput{Name: "Jo Rider", Email: "Jo@Example.org"},
		Type:  TypeBoth,
		Bike:  &BikeDetail{Brand: "Trek", Model: "FX 2", Value: 150},
		Parts: &PartsDetail{Description: "tubes", NumberOfParts: 4, Value: 20.5},
	}
}

func TestSubmitBothWritesInOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)

	res, err := svc.Submit(context.Background(), salesDesk, bothSubmission())
	require.NoError(t, err)
	require.Equal(t, []string{"donor", "donation", "bike", "parts"}, repo.calls)
	require.Len(t, repo.donations, 1)
	require.Len(t, repo.bikes, 1)
	require.Len(t, repo.parts, 1)

	d := repo.donations[0]
	require.Equal(t, "jo@example.org", d.Email)
	require.Equal(t, 1, d.TotalBikes)
	require.Equal(t, 4, d.TotalParts)
	require.InDelta(t, 170.5, d.TotalValue, 0.001)
	require.Equal(t, salesDesk.UserID, d.RecordedBy)
	require.Equal(t, res.DonationID, d.ID)
}

func TestSubmitPartsFailureRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.failOn = "parts"
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Submit(context.Background(), salesDesk, bothSubmission())
	require.Error(t, err)
	require.ErrorIs(t, err, shared.ErrQueryFailed)
	require.Equal(t, []string{"donor", "donation", "bike", "parts"}, repo.calls)
	require.Empty(t, repo.donors)
	require.Empty(t, repo.donations)
	require.Empty(t, repo.bikes)
}

func TestSubmitRequiresDonorFormAccess(t *testing.T) {
	for _, role := range []rbac.RoleTag{rbac.RoleNone, rbac.RoleEarnABike, rbac.RoleGiveABike} {
		repo := newMemoryRepo()
		svc := NewService(repo, nil, nil, nil, nil)
		_, err := svc.Submit(context.Background(), rbac.NewPrincipal(uuid.New(), "v@example.org", role), bothSubmission())
		require.ErrorIs(t, err, shared.ErrUnauthorized, role.String())
		require.Zero(t, repo.txCount)
	}
}

func TestSubmitValidatesRequiredFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)

	sub := bothSubmission()
	sub.Donor.Email = ""
	sub.Type = ""
	_, err := svc.Submit(context.Background(), salesDesk, sub)
	require.ErrorIs(t, err, shared.ErrValidationMissing)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "Email")
	require.Contains(t, verr.Fields, "Type")
	require.Zero(t, repo.txCount)
}

func TestSummarize(t *testing.T) {
	bike := Summarize(Submission{Type: TypeBike, Bike: &BikeDetail{Value: 80}, Parts: &PartsDetail{NumberOfParts: 3, Value: 10}})
	require.Equal(t, Summary{TotalBikes: 1, TotalValue: 80}, bike)

	parts := Summarize(Submission{Type: TypeParts, Parts: &PartsDetail{Value: 12}})
	require.Equal(t, Summary{TotalParts: 1, TotalValue: 12}, parts)
}

func TestSubmitIdempotencyAndReceipt(t *testing.T) {
	repo := newMemoryRepo()
	idem := &memoryIdem{keys: make(map[string]bool)}
	queue := &memoryQueue{}
	svc := NewService(repo, idem, queue, nil, nil)

	sub := bothSubmission()
	sub.IdempotencyKey = "form-1"
	sub.ReceiptRequested = true
	sub.TaxDeductible = true

	res, err := svc.Submit(context.Background(), salesDesk, sub)
	require.NoError(t, err)
	require.Len(t, queue.receipts, 1)
	require.Equal(t, res.DonationID, queue.receipts[0].DonationID)
	require.True(t, queue.receipts[0].TaxDeductible)

	_, err = svc.Submit(context.Background(), salesDesk, sub)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, 1, repo.txCount)
}

func TestFailedSubmitReleasesIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	repo.failOn = "donation"
	idem := &memoryIdem{keys: make(map[string]bool)}
	svc := NewService(repo, idem, nil, nil, nil)

	sub := bothSubmission()
	sub.IdempotencyKey = "form-2"
	_, err := svc.Submit(context.Background(), salesDesk, sub)
	require.Error(t, err)
	require.Equal(t, []string{"form-2"}, idem.deleted)
	require.Equal(t, []string{"donor", "donation"}, repo.calls)
}

func TestSearchDonorsFoldsCase(t *testing.T) {
	repo := newMemoryRepo()
	repo.listed = []Donor{
		{Name: "Ada Cycle", Email: "ada@example.org"},
		{Name: "Bo Spoke", Email: "bo@example.org", Address: "12 STRASSE Way"},
	}
	svc := NewService(repo, nil, nil, nil, nil)

	got, err := svc.SearchDonors(context.Background(), salesDesk, "strasse")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Bo Spoke", got[0].Name)

	all, err := svc.SearchDonors(context.Background(), salesDesk, "  ")
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.SearchDonors(context.Background(), rbac.Anonymous, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
