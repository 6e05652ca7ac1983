package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

type stubRepo struct {
	*InMemoryRepository
	createErr error
	deadline  bool
}

func (s *stubRepo) Create(ctx context.Context, lead NewLead) (*Lead, error) {
	_, s.deadline = ctx.Deadline()
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.InMemoryRepository.Create(ctx, lead)
}

type capturePublisher struct {
	leads []*Lead
	err   error
}

func (p *capturePublisher) PublishLeadCreated(ctx context.Context, lead *Lead) error {
	p.leads = append(p.leads, lead)
	return p.err
}

func TestRepositorySubmitterSuccessPublishesEvent(t *testing.T) {
	repo := &stubRepo{InMemoryRepository: NewInMemoryRepository()}
	pub := &capturePublisher{err: errors.New("queue down")}
	sub := NewRepositorySubmitter(repo, logging.Discard(), WithEventPublisher(pub), WithSubmitTimeout(time.Second))

	lead, err := sub.Submit(context.Background(), NewLead{Name: "Aditi Rao", Phone: "9876543210", Email: "aditi@example.com", Area: "Koramangala"})
	if err != nil {
		t.Fatalf("publish failures must not surface: %v", err)
	}
	if lead.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !repo.deadline {
		t.Fatalf("expected insert to be bounded by a deadline")
	}
	if len(pub.leads) != 1 || pub.leads[0].ID != lead.ID {
		t.Fatalf("expected one lead.created event, got %d", len(pub.leads))
	}
}

func TestRepositorySubmitterClassifiesErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kind    SubmissionKind
		message string
	}{
		{
			name:    "postgres rejection",
			err:     &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"users_phone_key\""},
			kind:    SubmissionRejected,
			message: "duplicate key value violates unique constraint \"users_phone_key\"",
		},
		{
			name:    "wrapped rejection",
			err:     errors.Join(errors.New("leads: insert failed"), &pgconn.PgError{Message: "new row violates check constraint"}),
			kind:    SubmissionRejected,
			message: "new row violates check constraint",
		},
		{
			name:    "transport failure",
			err:     context.DeadlineExceeded,
			kind:    SubmissionNetwork,
			message: networkErrorMessage,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{InMemoryRepository: NewInMemoryRepository(), createErr: tc.err}
			_, err := NewRepositorySubmitter(repo, logging.Discard()).Submit(context.Background(), NewLead{Name: "x"})
			var subErr *SubmissionError
			if !errors.As(err, &subErr) {
				t.Fatalf("expected SubmissionError, got %v", err)
			}
			if subErr.Kind != tc.kind || subErr.Message != tc.message {
				t.Fatalf("got kind=%s message=%q", subErr.Kind, subErr.Message)
			}
		})
	}
}

func TestInMemoryRepositoryList(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	for _, area := range []string{"HSR Layout", "Koramangala", "HSR Layout"} {
		if _, err := repo.Create(ctx, NewLead{Name: "n", Area: area}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, _ := repo.List(ctx, ListFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(all))
	}
	hsr, _ := repo.List(ctx, ListFilter{Area: "HSR Layout", Limit: 1})
	if len(hsr) != 1 || hsr[0].Area != "HSR Layout" {
		t.Fatalf("unexpected filtered result %+v", hsr)
	}
	empty, _ := repo.List(ctx, ListFilter{Offset: 10})
	if len(empty) != 0 {
		t.Fatalf("expected empty page")
	}

	got, err := repo.GetByID(ctx, all[0].ID)
	if err != nil || got.ID != all[0].ID {
		t.Fatalf("GetByID: %v", err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}
