package screening

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/jsonlog"
	"github.com/cun0/vessel-notify/internal/metrics"
)

type fakeProvider struct {
	mu          sync.Mutex
	txID        string
	registerErr error
	registered  []string
	polls       int
	respond     func(attempt int) (TransactionResponse, error)
}

func (p *fakeProvider) Register(_ context.Context, imo string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, imo)
	return p.txID, p.registerErr
}

func (p *fakeProvider) Transaction(_ context.Context, id string) (TransactionResponse, error) {
	p.mu.Lock()
	p.polls++
	n := p.polls
	p.mu.Unlock()
	return p.respond(n)
}

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]domain.Notification
	updates   int
	updateErr error
	findErr   error
}

func newFakeStore(recs ...domain.Notification) *fakeStore {
	s := &fakeStore{records: make(map[string]domain.Notification)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) UpdateScreening(_ context.Context, id string, res domain.ScreeningResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	rec, ok := s.records[id]
	if !ok || rec.ScreeningResult != nil {
		return 0, nil
	}
	rec.ScreeningResult = &res
	s.records[id] = rec
	s.updates++
	return 1, nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return domain.Notification{}, s.findErr
	}
	return s.records[id], nil
}

type fakePublisher struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (p *fakePublisher) PublishNotification(n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, n)
}

func (p *fakePublisher) published() []domain.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Notification(nil), p.got...)
}

var screenedAt = time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)

func pendingResponse() (TransactionResponse, error) {
	return TransactionResponse{Objects: []TransactionObject{{ScreeningStatus: "PENDING"}}}, nil
}

func clearResponse() (TransactionResponse, error) {
	return TransactionResponse{Objects: []TransactionObject{{
		ID:              "S-77",
		ScreeningStatus: "CLEAR",
		OverallSeverity: "LOW",
		ScreenResults:   []CheckResult{{Check: "SANCTIONS", Status: "NONE"}},
	}}}, nil
}

func screenedRecord(t *testing.T, payload string) domain.Notification {
	t.Helper()
	n, err := domain.NewNotification(domain.KindZonePort, json.RawMessage(payload), screenedAt.Add(-time.Hour))
	require.NoError(t, err)
	n.ID = "01J0000000000000000000REC1"
	return n
}

const autoScreenPayload = `{"notification":{"reference":"U1|true","vessel_information":{"imo":9074729}}}`

type harness struct {
	engine    *Engine
	provider  *fakeProvider
	store     *fakeStore
	publisher *fakePublisher
	sleeps    []time.Duration
}

func newHarness(t *testing.T, rec domain.Notification, provider *fakeProvider) *harness {
	t.Helper()
	h := &harness{
		provider:  provider,
		store:     newFakeStore(rec),
		publisher: &fakePublisher{},
	}
	h.engine = NewEngine(provider, h.store, h.publisher, jsonlog.Discard())
	h.engine.clock = func() time.Time { return screenedAt }
	h.engine.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func TestEngine_ResolvesOnThirdPoll(t *testing.T) {
	rec := screenedRecord(t, autoScreenPayload)
	h := newHarness(t, rec, &fakeProvider{
		txID: "T",
		respond: func(n int) (TransactionResponse, error) {
			if n < 3 {
				return pendingResponse()
			}
			return clearResponse()
		},
	})

	s := h.engine.Screen(context.Background(), rec)

	require.NoError(t, s.Err)
	assert.Equal(t, StatusResolved, s.Status)
	assert.Equal(t, 3, s.Attempt)
	assert.Equal(t, "9074729", s.VesselIMO)
	assert.Equal(t, "T", s.TransactionID)
	assert.Equal(t, []string{"9074729"}, h.provider.registered)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, h.sleeps)

	stored := h.store.records[rec.ID].ScreeningResult
	require.NotNil(t, stored)
	require.NotNil(t, stored.ShipSanctions)
	assert.Equal(t, "NONE", *stored.ShipSanctions)
	assert.Nil(t, stored.CompanySanctions)
	assert.Nil(t, stored.ShipMovementHistory)
	assert.Nil(t, stored.PSCHistory)
	assert.Equal(t, "CLEAR", stored.Status)
	assert.Equal(t, "LOW", stored.OverallSeverity)
	assert.Equal(t, "S-77", stored.ScreeningID)
	assert.Equal(t, "T", stored.TransactionID)
	assert.Equal(t, screenedAt, stored.ScreenedAt)

	pub := h.publisher.published()
	require.Len(t, pub, 1)
	assert.Equal(t, rec.ID, pub[0].ID)
	require.NotNil(t, pub[0].ScreeningResult)
}

func TestEngine_PollAttemptsCountedByResult(t *testing.T) {
	labels := []string{"error", "empty", "pending", "terminal"}
	before := make(map[string]float64, len(labels))
	for _, l := range labels {
		before[l] = testutil.ToFloat64(metrics.ScreeningPolls.WithLabelValues(l))
	}

	rec := screenedRecord(t, autoScreenPayload)
	h := newHarness(t, rec, &fakeProvider{
		txID: "T",
		respond: func(n int) (TransactionResponse, error) {
			switch n {
			case 1:
				return TransactionResponse{}, errors.New("502 from provider")
			case 2:
				return TransactionResponse{}, nil
			case 3:
				return pendingResponse()
			default:
				return clearResponse()
			}
		},
	})

	s := h.engine.Screen(context.Background(), rec)
	require.Equal(t, StatusResolved, s.Status)

	for _, l := range labels {
		assert.Equal(t, before[l]+1, testutil.ToFloat64(metrics.ScreeningPolls.WithLabelValues(l)), l)
	}
}

func TestEngine_TimesOutAfterMaxAttempts(t *testing.T) {
	for name, respond := range map[string]func(int) (TransactionResponse, error){
		"always pending": func(int) (TransactionResponse, error) { return pendingResponse() },
		"never any object": func(int) (TransactionResponse, error) {
			return TransactionResponse{}, nil
		},
	} {
		t.Run(name, func(t *testing.T) {
			rec := screenedRecord(t, autoScreenPayload)
			h := newHarness(t, rec, &fakeProvider{txID: "T", respond: respond})

			s := h.engine.Screen(context.Background(), rec)

			assert.Equal(t, StatusTimedOut, s.Status)
			assert.Equal(t, MaxAttempts, s.Attempt)
			assert.Equal(t, MaxAttempts, h.provider.polls)
			assert.Zero(t, h.store.updates)
			assert.Nil(t, h.store.records[rec.ID].ScreeningResult)
			assert.Empty(t, h.publisher.published())

			var total time.Duration
			for _, d := range h.sleeps {
				total += d
			}
			assert.Len(t, h.sleeps, MaxAttempts-1)
			assert.Equal(t, 290*time.Second, total)
		})
	}
}

func TestEngine_TransientErrorsKeepPolling(t *testing.T) {
	rec := screenedRecord(t, autoScreenPayload)
	h := newHarness(t, rec, &fakeProvider{
		txID: "T",
		respond: func(n int) (TransactionResponse, error) {
			switch n {
			case 1:
				return TransactionResponse{}, &ProviderError{Op: "poll", StatusCode: 502, Err: errors.New("bad gateway")}
			case 2:
				return TransactionResponse{}, nil
			default:
				return clearResponse()
			}
		},
	})

	s := h.engine.Screen(context.Background(), rec)

	assert.Equal(t, StatusResolved, s.Status)
	assert.Equal(t, 3, s.Attempt)
	assert.Len(t, h.publisher.published(), 1)
}

func TestEngine_TerminalFailures(t *testing.T) {
	storeErr := errors.New("connection reset")

	tests := []struct {
		name       string
		payload    string
		provider   *fakeProvider
		prepare    func(*fakeStore)
		wantErr    error
		wantPolls  int
		wantUpdate bool
	}{
		{
			name:     "missing imo",
			payload:  `{"notification":{"reference":"U1|true"}}`,
			provider: &fakeProvider{txID: "T"},
			wantErr:  ErrMissingIMO,
		},
		{
			name:     "registration rejected",
			payload:  autoScreenPayload,
			provider: &fakeProvider{registerErr: &ProviderError{Op: "register", StatusCode: 401, Err: errors.New("denied")}},
		},
		{
			name:     "no transaction id",
			payload:  autoScreenPayload,
			provider: &fakeProvider{},
			wantErr:  ErrNoTransactionID,
		},
		{
			name:      "store update fails",
			payload:   autoScreenPayload,
			provider:  &fakeProvider{txID: "T", respond: func(int) (TransactionResponse, error) { return clearResponse() }},
			prepare:   func(s *fakeStore) { s.updateErr = storeErr },
			wantErr:   storeErr,
			wantPolls: 1,
		},
		{
			name:      "already screened",
			payload:   autoScreenPayload,
			provider:  &fakeProvider{txID: "T", respond: func(int) (TransactionResponse, error) { return clearResponse() }},
			prepare:   func(s *fakeStore) { s.records["01J0000000000000000000REC1"] = domain.Notification{ID: "01J0000000000000000000REC1", ScreeningResult: &domain.ScreeningResult{}} },
			wantErr:   errNotUpdated,
			wantPolls: 1,
		},
		{
			name:       "reload fails",
			payload:    autoScreenPayload,
			provider:   &fakeProvider{txID: "T", respond: func(int) (TransactionResponse, error) { return clearResponse() }},
			prepare:    func(s *fakeStore) { s.findErr = storeErr },
			wantErr:    storeErr,
			wantPolls:  1,
			wantUpdate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := screenedRecord(t, tt.payload)
			h := newHarness(t, rec, tt.provider)
			if tt.prepare != nil {
				tt.prepare(h.store)
			}

			s := h.engine.Screen(context.Background(), rec)

			assert.Equal(t, StatusFailed, s.Status)
			require.Error(t, s.Err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, s.Err, tt.wantErr)
			}
			assert.Equal(t, tt.wantPolls, h.provider.polls)
			assert.Equal(t, tt.wantUpdate, h.store.updates == 1)
			assert.Empty(t, h.publisher.published())
		})
	}
}

func TestEngine_CancelledSessionFails(t *testing.T) {
	rec := screenedRecord(t, autoScreenPayload)
	h := newHarness(t, rec, &fakeProvider{
		txID:    "T",
		respond: func(int) (TransactionResponse, error) { return pendingResponse() },
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.engine.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	s := h.engine.Screen(ctx, rec)

	assert.Equal(t, StatusFailed, s.Status)
	assert.ErrorIs(t, s.Err, context.Canceled)
	assert.Equal(t, 1, s.Attempt)
	assert.Zero(t, h.store.updates)
	assert.Empty(t, h.publisher.published())
}

func TestBuildResult_FirstTagWins(t *testing.T) {
	obj := TransactionObject{
		ScreeningStatus: "FLAGGED",
		ScreenResults: []CheckResult{
			{Check: "PSC_HISTORY", Status: "DETENTIONS"},
			{Check: "PSC_HISTORY", Status: "NONE"},
			{Check: "COMPANY_SANCTIONS", Status: "SEVERE"},
			{Check: "sanctions", Status: "ignored: tags are case sensitive"},
		},
	}

	res := BuildResult("T-9", obj, screenedAt)

	require.NotNil(t, res.PSCHistory)
	assert.Equal(t, "DETENTIONS", *res.PSCHistory)
	require.NotNil(t, res.CompanySanctions)
	assert.Equal(t, "SEVERE", *res.CompanySanctions)
	assert.Nil(t, res.ShipSanctions)
	assert.Equal(t, "FLAGGED", res.Status)
}
