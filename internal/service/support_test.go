package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/repository"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
)

// fakeStore is an in-memory sessionstore.Store. UpdateExclusive errors can be
// scripted through updateErrs to exercise the deadlock retry path.
type fakeStore struct {
	sessions   map[uuid.UUID]*model.ExamSession
	violations map[uuid.UUID][]model.Violation
	committed  map[uuid.UUID][]model.Answer
	audits     int
	archived   []uuid.UUID
	updateErrs []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:   make(map[uuid.UUID]*model.ExamSession),
		violations: make(map[uuid.UUID][]model.Violation),
		committed:  make(map[uuid.UUID][]model.Answer),
	}
}

func (f *fakeStore) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (*model.ExamSession, bool, error) {
	if existing, err := f.LoadActive(ctx, s.Identity()); err == nil {
		return existing, false, nil
	}
	f.sessions[s.ID] = s
	return s, true, nil
}

func (f *fakeStore) LoadActive(_ context.Context, id model.Identity) (*model.ExamSession, error) {
	for _, s := range f.sessions {
		if s.IdentityKind == id.Kind && s.IdentityKey == id.Key && !s.Terminal() {
			return s, nil
		}
	}
	return nil, sessionstore.ErrNotFound
}

func (f *fakeStore) LoadByID(_ context.Context, id model.Identity, sessionID uuid.UUID) (*model.ExamSession, error) {
	s, ok := f.sessions[sessionID]
	if !ok || s.IdentityKind != id.Kind || s.IdentityKey != id.Key {
		return nil, sessionstore.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) LoadByCorrelation(_ context.Context, id model.Identity, correlationID uuid.UUID) (*model.ExamSession, error) {
	for _, s := range f.sessions {
		if s.IdentityKind == id.Kind && s.IdentityKey == id.Key && s.CorrelationID == correlationID {
			return s, nil
		}
	}
	return nil, sessionstore.ErrNotFound
}

func (f *fakeStore) Save(_ context.Context, s *model.ExamSession) error {
	if _, ok := f.sessions[s.ID]; !ok {
		return sessionstore.ErrNotFound
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) UpdateExclusive(ctx context.Context, id model.Identity, sessionID uuid.UUID, fn func(*model.ExamSession) error) error {
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	s, err := f.LoadByID(ctx, id, sessionID)
	if err != nil {
		return err
	}
	return fn(s)
}

func (f *fakeStore) SaveAnswers(_ context.Context, s *model.ExamSession, answers []model.Answer) error {
	f.committed[s.ID] = answers
	return nil
}

func (f *fakeStore) AppendViolation(_ context.Context, v *model.Violation) (int, error) {
	f.violations[v.SessionID] = append(f.violations[v.SessionID], *v)
	return len(f.violations[v.SessionID]), nil
}

func (f *fakeStore) CountViolations(_ context.Context, _ model.Identity, sessionID uuid.UUID) (int, error) {
	return len(f.violations[sessionID]), nil
}

func (f *fakeStore) ListViolations(_ context.Context, _ model.Identity, sessionID uuid.UUID) ([]model.Violation, error) {
	return append([]model.Violation(nil), f.violations[sessionID]...), nil
}

func (f *fakeStore) SnapshotAudit(_ context.Context, _ *model.ExamSession, _ []model.Violation) error {
	f.audits++
	return nil
}

func (f *fakeStore) Archive(_ context.Context, s *model.ExamSession) error {
	f.archived = append(f.archived, s.ID)
	return nil
}

// fakeTokens is an in-memory TokenIssuer.
type fakeTokens struct {
	toks    map[string]*model.PartToken
	revoked []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{toks: make(map[string]*model.PartToken)}
}

func (f *fakeTokens) Issue(_ context.Context, id model.Identity, sessionID uuid.UUID, part int) (*model.PartToken, error) {
	tok := &model.PartToken{
		ID:           uuid.New(),
		IdentityKind: id.Kind,
		IdentityKey:  id.Key,
		SessionID:    sessionID,
		Part:         part,
	}
	f.toks[tok.ID.String()] = tok
	return tok, nil
}

func (f *fakeTokens) Lookup(_ context.Context, tokenID string, id model.Identity) (*model.PartToken, error) {
	tok, ok := f.toks[tokenID]
	if !ok || tok.IdentityKind != id.Kind || tok.IdentityKey != id.Key {
		return nil, ErrInvalidSession
	}
	return tok, nil
}

func (f *fakeTokens) Validate(ctx context.Context, tokenID string, id model.Identity, part int) (*model.PartToken, error) {
	tok, err := f.Lookup(ctx, tokenID, id)
	if err != nil {
		return nil, err
	}
	if tok.Part != part {
		return nil, ErrInvalidSession
	}
	return tok, nil
}

func (f *fakeTokens) Revoke(_ context.Context, tokenID string) error {
	delete(f.toks, tokenID)
	f.revoked = append(f.revoked, tokenID)
	return nil
}

// fakeQuestions is an in-memory QuestionSource.
type fakeQuestions struct {
	byID map[int64]model.Question
}

func newFakeQuestions(questions ...model.Question) *fakeQuestions {
	f := &fakeQuestions{byID: make(map[int64]model.Question, len(questions))}
	for _, q := range questions {
		f.byID[q.ID] = q
	}
	return f
}

func (f *fakeQuestions) ListByPart(_ context.Context, part, limit int) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.byID {
		if q.Part == part {
			out = append(out, q)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQuestions) GetByID(_ context.Context, id int64) (*model.Question, error) {
	q, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrQuestionNotFound
	}
	return &q, nil
}

// fakeFormats resolves the built-in defaults and fails custom variants the way
// an empty format table would.
type fakeFormats struct{}

func (fakeFormats) Resolve(_ context.Context, _ *uuid.UUID, variant model.ExamVariant) (model.ExamFormat, error) {
	format, ok := defaultFormats[variant]
	if !ok {
		return nil, ErrFormatUnavailable
	}
	return format, nil
}
