package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"content-forge-api/internal/domain/entity"
	apperrors "content-forge-api/pkg/errors"
)

func TestCanGenerate(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)
	earlierToday := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 5, 0, 0, time.Local)

	cases := []struct {
		name string
		user *entity.User
		want bool
	}{
		{"missing user document", nil, true},
		{"free never generated", &entity.User{ID: "u", Role: entity.RoleFree}, true},
		{"free generated yesterday", &entity.User{ID: "u", Role: entity.RoleFree, LastGenerationDate: ptrTime(yesterday)}, true},
		{"free generated today", &entity.User{ID: "u", Role: entity.RoleFree, LastGenerationDate: ptrTime(earlierToday)}, false},
		{"legacy user role", &entity.User{ID: "u", Role: "user", LastGenerationDate: ptrTime(earlierToday)}, false},
		{"paid zero credits", &entity.User{ID: "u", Role: entity.RolePaid, Credits: 0}, false},
		{"paid one credit", &entity.User{ID: "u", Role: entity.RolePaid, Credits: 1}, true},
		{"admin", &entity.User{ID: "u", Role: entity.RoleAdmin, LastGenerationDate: ptrTime(earlierToday)}, true},
		{"stored guest", &entity.User{ID: "u", Role: entity.RoleGuest}, false},
		{"unknown role", &entity.User{ID: "u", Role: "wizard"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore()
			if tc.user != nil {
				s.putUser(*tc.user)
			}
			got, err := newTestLedger(s, nil).CanGenerate(context.Background(), "u")
			if err != nil {
				t.Fatalf("CanGenerate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("CanGenerate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateUnknownRoleReason(t *testing.T) {
	s := newMemStore()
	s.putUser(entity.User{ID: "u", Role: "wizard"})

	d, err := newTestLedger(s, nil).Evaluate(context.Background(), "u")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed || d.Reason == nil || d.Reason.Code != apperrors.CodeUnknownRole {
		t.Fatalf("decision = %+v, want UnknownRole denial", d)
	}
}

func TestEvaluateAnonymousAllowed(t *testing.T) {
	d, err := newTestLedger(newMemStore(), nil).Evaluate(context.Background(), "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed || d.Role != entity.RoleGuest {
		t.Fatalf("decision = %+v", d)
	}
}

func TestCommitGenerationFreeUser(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "u", Role: entity.RoleFree})
	l := newTestLedger(s, nil)

	if err := l.CommitGeneration(context.Background(), "u", testModel, WithTokens(120)); err != nil {
		t.Fatalf("CommitGeneration: %v", err)
	}

	u, _ := s.user("u")
	if u.LastGenerationDate == nil || !u.LastGenerationDate.Equal(testNow) {
		t.Fatalf("last generation date = %v, want %v", u.LastGenerationDate, testNow)
	}
	if u.Credits != 0 {
		t.Fatalf("credits changed for free user: %d", u.Credits)
	}
	m, _ := s.model(testModel)
	if m.RPM != 1 || m.RPD != 1 || m.TPM != 120 {
		t.Fatalf("model counters = rpm %d rpd %d tpm %d", m.RPM, m.RPD, m.TPM)
	}

	ok, err := l.CanGenerate(context.Background(), "u")
	if err != nil || ok {
		t.Fatalf("CanGenerate after commit = %v, %v; want false", ok, err)
	}
}

func TestCommitGenerationAdminOnlyTouchesModel(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "root", Role: entity.RoleAdmin, Credits: 7})

	if err := newTestLedger(s, nil).CommitGeneration(context.Background(), "root", testModel); err != nil {
		t.Fatalf("CommitGeneration: %v", err)
	}
	u, _ := s.user("root")
	if u.Credits != 7 || u.LastGenerationDate != nil {
		t.Fatalf("admin user mutated: %+v", u)
	}
	m, _ := s.model(testModel)
	if m.RPM != 1 {
		t.Fatalf("rpm = %d, want 1", m.RPM)
	}
}

func TestCommitGenerationCreatesMissingUser(t *testing.T) {
	s := newMemStore()
	seedModel(s)

	if err := newTestLedger(s, nil).CommitGeneration(context.Background(), "new", testModel); err != nil {
		t.Fatalf("CommitGeneration: %v", err)
	}
	u, ok := s.user("new")
	if !ok || u.Role != entity.RoleFree || u.LastGenerationDate == nil {
		t.Fatalf("user = %+v, ok=%v", u, ok)
	}
}

func TestCommitGenerationUnknownRoleRollsBack(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "u", Role: "wizard"})

	err := newTestLedger(s, nil).CommitGeneration(context.Background(), "u", testModel)
	if !errors.Is(err, apperrors.ErrUnknownRole) {
		t.Fatalf("err = %v, want UnknownRole", err)
	}
	if m, _ := s.model(testModel); m.RPM != 0 {
		t.Fatalf("rpm = %d after aborted commit", m.RPM)
	}
}

func TestCommitGenerationUnknownModel(t *testing.T) {
	s := newMemStore()
	s.putUser(entity.User{ID: "u", Role: entity.RolePaid, Credits: 2})

	err := newTestLedger(s, nil).CommitGeneration(context.Background(), "u", "nope")
	if !errors.Is(err, apperrors.ErrUnknownModel) {
		t.Fatalf("err = %v, want UnknownModel", err)
	}
	if u, _ := s.user("u"); u.Credits != 2 {
		t.Fatalf("credits = %d, credit spent on aborted commit", u.Credits)
	}
}

func TestCommitGenerationConcurrentSingleCredit(t *testing.T) {
	const n = 20

	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "payer", Role: entity.RolePaid, Credits: 1})
	l := newTestLedger(s, nil)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
		others       []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := l.CommitGeneration(context.Background(), "payer", testModel)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperrors.ErrInsufficientCredits):
				insufficient++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || insufficient != n-1 {
		t.Fatalf("successes=%d insufficient=%d, want 1 and %d", successes, insufficient, n-1)
	}
	u, _ := s.user("payer")
	if u.Credits != 0 {
		t.Fatalf("final credits = %d, want 0", u.Credits)
	}
	m, _ := s.model(testModel)
	if m.RPM != 1 {
		t.Fatalf("rpm = %d, want 1", m.RPM)
	}
}

func TestCommitGenerationRetriesTransient(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "u", Role: entity.RolePaid, Credits: 3})
	s.failTransient("save_user", 2)

	var slept []time.Duration
	l := NewLedger(s, memUserRepo{s}, memModelRepo{s}, nil,
		WithClock(func() time.Time { return testNow }),
		WithRetryPolicy(noSleepRetry(&slept)),
	)
	if err := l.CommitGeneration(context.Background(), "u", testModel); err != nil {
		t.Fatalf("CommitGeneration: %v", err)
	}
	if u, _ := s.user("u"); u.Credits != 2 {
		t.Fatalf("credits = %d, want exactly one credit spent", u.Credits)
	}
	if got := s.callCount("save_user"); got != 3 {
		t.Fatalf("save attempts = %d, want 3", got)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("backoff = %v, want [1s 2s]", slept)
	}
}

func TestCommitGenerationSurfacesStoreTransient(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "u", Role: entity.RolePaid, Credits: 3})
	s.failTransient("save_user", 10)

	err := newTestLedger(s, nil).CommitGeneration(context.Background(), "u", testModel)
	if !errors.Is(err, apperrors.ErrStoreTransient) {
		t.Fatalf("err = %v, want StoreTransient", err)
	}
	if got := s.callCount("save_user"); got != 3 {
		t.Fatalf("save attempts = %d, want 3", got)
	}
	if u, _ := s.user("u"); u.Credits != 3 {
		t.Fatalf("credits = %d after failed commit", u.Credits)
	}
}

func TestIsRateLimited(t *testing.T) {
	ctx := context.Background()

	t.Run("under limit", func(t *testing.T) {
		s := newMemStore()
		seedModel(s)
		limited, err := newTestLedger(s, nil).IsRateLimited(ctx, testModel, "u")
		if err != nil || limited {
			t.Fatalf("IsRateLimited = %v, %v", limited, err)
		}
	})

	t.Run("rpm at limit", func(t *testing.T) {
		s := newMemStore()
		seedModel(s)
		m, _ := s.model(testModel)
		m.RPM = m.RPMLimit
		s.putModel(m)
		limited, err := newTestLedger(s, nil).IsRateLimited(ctx, testModel, "u")
		if err != nil || !limited {
			t.Fatalf("IsRateLimited = %v, %v; want true", limited, err)
		}
	})

	t.Run("admin bypass", func(t *testing.T) {
		s := newMemStore()
		seedModel(s)
		m, _ := s.model(testModel)
		m.RPD = m.RPDLimit
		s.putModel(m)
		s.putUser(entity.User{ID: "root", Role: entity.RoleAdmin})
		limited, err := newTestLedger(s, nil).IsRateLimited(ctx, testModel, "root")
		if err != nil || limited {
			t.Fatalf("IsRateLimited = %v, %v; want admin bypass", limited, err)
		}
	})

	t.Run("expired minute window resets", func(t *testing.T) {
		s := newMemStore()
		seedModel(s)
		m, _ := s.model(testModel)
		m.RPM = m.RPMLimit
		m.TPM = 500
		m.RPD = 40
		m.MinuteWindowStart = testNow.Add(-2 * time.Minute)
		s.putModel(m)

		limited, err := newTestLedger(s, nil).IsRateLimited(ctx, testModel, "")
		if err != nil || limited {
			t.Fatalf("IsRateLimited = %v, %v; want false after reset", limited, err)
		}
		got, _ := s.model(testModel)
		if got.RPM != 0 || got.TPM != 0 || got.RPD != 40 {
			t.Fatalf("counters after reset = rpm %d tpm %d rpd %d", got.RPM, got.TPM, got.RPD)
		}
		if !got.MinuteWindowStart.Equal(testNow) {
			t.Fatalf("window start = %v", got.MinuteWindowStart)
		}
	})

	t.Run("open window needs no transaction", func(t *testing.T) {
		s := newMemStore()
		seedModel(s)
		m, _ := s.model(testModel)
		m.RPM = m.RPMLimit
		s.putModel(m)
		limited, err := newTestLedger(s, nil).IsRateLimited(ctx, testModel, "")
		if err != nil || !limited {
			t.Fatalf("IsRateLimited = %v, %v; want true", limited, err)
		}
		if n := s.callCount("tx"); n != 0 {
			t.Fatalf("transactions = %d, want 0", n)
		}
	})

	t.Run("missing model record", func(t *testing.T) {
		limited, err := newTestLedger(newMemStore(), nil).IsRateLimited(ctx, "ghost", "")
		if err != nil || limited {
			t.Fatalf("IsRateLimited = %v, %v", limited, err)
		}
	})
}

func TestSubmitRating(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	l := newTestLedger(s, nil)
	ctx := context.Background()

	for _, r := range []entity.Rating{
		{ContentAccuracy: 1, Formatting: 1, OverallQuality: 1},
		{ContentAccuracy: 0, Formatting: 1, OverallQuality: 0},
	} {
		if err := l.SubmitRating(ctx, testModel, r); err != nil {
			t.Fatalf("SubmitRating: %v", err)
		}
	}
	m, _ := s.model(testModel)
	if m.RatingCount != 2 || m.ContentAccuracy != 1 || m.Formatting != 2 || m.OverallQuality != 1 {
		t.Fatalf("accumulators = %+v", m)
	}

	if err := l.SubmitRating(ctx, testModel, entity.Rating{ContentAccuracy: 4}); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("out of range rating err = %v", err)
	}
	if err := l.SubmitRating(ctx, "ghost", entity.Rating{}); !errors.Is(err, apperrors.ErrUnknownModel) {
		t.Fatalf("unknown model err = %v", err)
	}
}

func TestGrantCredits(t *testing.T) {
	s := newMemStore()
	s.putUser(entity.User{ID: "p", Role: entity.RolePaid, Credits: 1})
	s.putUser(entity.User{ID: "f", Role: entity.RoleFree})
	l := newTestLedger(s, nil)
	ctx := context.Background()

	u, err := l.GrantCredits(ctx, "p", 5)
	if err != nil || u.Credits != 6 {
		t.Fatalf("GrantCredits = %+v, %v", u, err)
	}
	if _, err := l.GrantCredits(ctx, "f", 5); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("grant to free user err = %v", err)
	}
	if _, err := l.GrantCredits(ctx, "missing", 5); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("grant to missing user err = %v", err)
	}
	if _, err := l.GrantCredits(ctx, "p", 0); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("zero grant err = %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	s := newMemStore()
	l := newTestLedger(s, nil)

	u, err := l.EnsureUser(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.Role != entity.RoleFree || u.Credits != 0 || u.GenerationCount != 0 {
		t.Fatalf("new user = %+v", u)
	}

	s.putUser(entity.User{ID: "paid", Role: entity.RolePaid, Credits: 9})
	u, err = l.EnsureUser(context.Background(), "paid")
	if err != nil || u.Credits != 9 {
		t.Fatalf("EnsureUser existing = %+v, %v", u, err)
	}
}

type recordingListener struct {
	mu     sync.Mutex
	models []string
}

func (r *recordingListener) ModelChanged(_ context.Context, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, model)
}

func TestLedgerNotifiesModelChanges(t *testing.T) {
	s := newMemStore()
	seedModel(s)
	s.putUser(entity.User{ID: "free", Role: entity.RoleFree})
	s.putUser(entity.User{ID: "broke", Role: entity.RolePaid, Credits: 0})
	listener := &recordingListener{}
	l := NewLedger(s, memUserRepo{s}, memModelRepo{s}, nil,
		WithClock(func() time.Time { return testNow }),
		WithRetryPolicy(noSleepRetry(nil)),
		WithChangeListener(listener),
	)
	ctx := context.Background()

	if err := l.CommitGeneration(ctx, "free", testModel); err != nil {
		t.Fatalf("CommitGeneration: %v", err)
	}
	if err := l.CommitGeneration(ctx, "broke", testModel); !errors.Is(err, apperrors.ErrInsufficientCredits) {
		t.Fatalf("CommitGeneration for paid user without credits = %v", err)
	}
	if err := l.SubmitRating(ctx, testModel, entity.Rating{ContentAccuracy: 1}); err != nil {
		t.Fatalf("SubmitRating: %v", err)
	}
	if err := l.SubmitRating(ctx, "ghost", entity.Rating{}); err == nil {
		t.Fatal("SubmitRating for unknown model succeeded")
	}

	if len(listener.models) != 2 || listener.models[0] != testModel || listener.models[1] != testModel {
		t.Fatalf("notified models = %v, want one commit and one rating", listener.models)
	}
}
