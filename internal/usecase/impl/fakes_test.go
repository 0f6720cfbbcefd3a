package impl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"authcore/internal/domain/entity"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// memStore is an in-memory stand-in for the relational store. One mutex
// guards everything; the fake transaction manager holds it for a whole
// transaction body, which serializes transactions the way the store does.
type memStore struct {
	mu sync.Mutex

	users         map[uuid.UUID]*entity.User
	accounts      map[uuid.UUID]*entity.Account
	codes         map[uuid.UUID]*entity.VerificationCode
	verifiers     map[uuid.UUID]*entity.Verifier
	sessions      map[uuid.UUID]*entity.Session
	refreshTokens map[uuid.UUID]*entity.RefreshToken
	auditEvents   map[uuid.UUID]*entity.AuditEvent

	// order records insertion sequence per row ID, for stable listings.
	order map[uuid.UUID]int
	seq   int

	// accountLookupMisses makes the next N account lookups miss, simulating
	// a concurrent insert landing between a lookup and a create.
	accountLookupMisses int
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[uuid.UUID]*entity.User),
		accounts:      make(map[uuid.UUID]*entity.Account),
		codes:         make(map[uuid.UUID]*entity.VerificationCode),
		verifiers:     make(map[uuid.UUID]*entity.Verifier),
		sessions:      make(map[uuid.UUID]*entity.Session),
		refreshTokens: make(map[uuid.UUID]*entity.RefreshToken),
		auditEvents:   make(map[uuid.UUID]*entity.AuditEvent),
		order:         make(map[uuid.UUID]int),
	}
}

func (s *memStore) nextSeq(id uuid.UUID) {
	s.seq++
	s.order[id] = s.seq
}

type memSnapshot struct {
	users         map[uuid.UUID]*entity.User
	accounts      map[uuid.UUID]*entity.Account
	codes         map[uuid.UUID]*entity.VerificationCode
	verifiers     map[uuid.UUID]*entity.Verifier
	sessions      map[uuid.UUID]*entity.Session
	refreshTokens map[uuid.UUID]*entity.RefreshToken
	auditEvents   map[uuid.UUID]*entity.AuditEvent
	order         map[uuid.UUID]int
	seq           int
}

// snapshot copies the table maps. Stored rows are never mutated in place
// (repos copy on read and on write), so sharing row pointers is safe.
func (s *memStore) snapshot() *memSnapshot {
	snap := &memSnapshot{
		users:         make(map[uuid.UUID]*entity.User, len(s.users)),
		accounts:      make(map[uuid.UUID]*entity.Account, len(s.accounts)),
		codes:         make(map[uuid.UUID]*entity.VerificationCode, len(s.codes)),
		verifiers:     make(map[uuid.UUID]*entity.Verifier, len(s.verifiers)),
		sessions:      make(map[uuid.UUID]*entity.Session, len(s.sessions)),
		refreshTokens: make(map[uuid.UUID]*entity.RefreshToken, len(s.refreshTokens)),
		auditEvents:   make(map[uuid.UUID]*entity.AuditEvent, len(s.auditEvents)),
		order:         make(map[uuid.UUID]int, len(s.order)),
		seq:           s.seq,
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.codes {
		snap.codes[k] = v
	}
	for k, v := range s.verifiers {
		snap.verifiers[k] = v
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v
	}
	for k, v := range s.refreshTokens {
		snap.refreshTokens[k] = v
	}
	for k, v := range s.auditEvents {
		snap.auditEvents[k] = v
	}
	for k, v := range s.order {
		snap.order[k] = v
	}

	return snap
}

func (s *memStore) restore(snap *memSnapshot) {
	s.users = snap.users
	s.accounts = snap.accounts
	s.codes = snap.codes
	s.verifiers = snap.verifiers
	s.sessions = snap.sessions
	s.refreshTokens = snap.refreshTokens
	s.auditEvents = snap.auditEvents
	s.order = snap.order
	s.seq = snap.seq
}

// Seeding helpers take the lock themselves so tests can arrange state
// without going through a transaction.

func (s *memStore) seedUser(user *entity.User) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *user
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.users[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) seedAccount(account *entity.Account) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *account
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.accounts[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) seedCode(code *entity.VerificationCode) *entity.VerificationCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *code
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.codes[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) seedVerifier(verifier *entity.Verifier) *entity.Verifier {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *verifier
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.verifiers[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) seedSession(session *entity.Session) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.sessions[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) seedRefreshToken(token *entity.RefreshToken) *entity.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *token
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.refreshTokens[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) seedAuditEvent(event *entity.AuditEvent) *entity.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *event
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.auditEvents[stored.ID] = &stored
	s.nextSeq(stored.ID)

	return &stored
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.users)
}

func (s *memStore) accountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.accounts)
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *memStore) refreshTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.refreshTokens)
}

// liveCodeCount counts codes that are neither used nor expired.
func (s *memStore) liveCodeCount(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.codes {
		if c.UsedAt == nil && !now.After(c.ExpiresAt) {
			count++
		}
	}

	return count
}

func (s *memStore) codeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.codes)
}

func (s *memStore) verifierCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.verifiers)
}

func (s *memStore) auditEventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.auditEvents)
}

func (s *memStore) userByID(id uuid.UUID) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		copied := *u

		return &copied
	}

	return nil
}

func (s *memStore) accountByProvider(provider, providerAccountID string) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			copied := *a

			return &copied
		}
	}

	return nil
}

func (s *memStore) sessionByID(id uuid.UUID) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		copied := *sess

		return &copied
	}

	return nil
}

// fakeTxManager implements repository.TransactionManager over memStore.
// Errors restore the pre-transaction snapshot, mirroring a rollback.
type fakeTxManager struct {
	store *memStore

	mu                     sync.Mutex
	executions             int
	serializableExecutions int
}

func newFakeTxManager(store *memStore) *fakeTxManager {
	return &fakeTxManager{store: store}
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.mu.Lock()
	m.executions++
	m.mu.Unlock()

	return m.run(fn)
}

func (m *fakeTxManager) ExecuteSerializable(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.mu.Lock()
	m.serializableExecutions++
	m.mu.Unlock()

	return m.run(fn)
}

func (m *fakeTxManager) run(fn func(repository.RepositoryFactory) error) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(&fakeRepoFactory{store: m.store}); err != nil {
		m.store.restore(snap)

		return err
	}

	return nil
}

type fakeRepoFactory struct {
	store *memStore
}

func (f *fakeRepoFactory) NewUserRepository() repository.UserRepository {
	return &fakeUserRepo{store: f.store}
}

func (f *fakeRepoFactory) NewAccountRepository() repository.AccountRepository {
	return &fakeAccountRepo{store: f.store}
}

func (f *fakeRepoFactory) NewVerificationCodeRepository() repository.VerificationCodeRepository {
	return &fakeCodeRepo{store: f.store}
}

func (f *fakeRepoFactory) NewVerifierRepository() repository.VerifierRepository {
	return &fakeVerifierRepo{store: f.store}
}

func (f *fakeRepoFactory) NewSessionRepository() repository.SessionRepository {
	return &fakeSessionRepo{store: f.store}
}

func (f *fakeRepoFactory) NewRefreshTokenRepository() repository.RefreshTokenRepository {
	return &fakeRefreshTokenRepo{store: f.store}
}

func (f *fakeRepoFactory) NewAuditEventRepository() repository.AuditEventRepository {
	return &fakeAuditEventRepo{store: f.store}
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	if u, ok := r.store.users[id]; ok {
		copied := *u

		return &copied, nil
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByVerifiedEmail(_ context.Context, email string) ([]*entity.User, error) {
	var matches []*entity.User
	for _, u := range r.store.users {
		if u.Email == email && u.EmailVerified != nil {
			copied := *u
			matches = append(matches, &copied)
		}
	}
	sortBySeq(r.store.order, matches, func(u *entity.User) uuid.UUID { return u.ID })

	return matches, nil
}

func (r *fakeUserRepo) FindByVerifiedPhone(_ context.Context, phone string) ([]*entity.User, error) {
	var matches []*entity.User
	for _, u := range r.store.users {
		if u.Phone == phone && u.PhoneVerified != nil {
			copied := *u
			matches = append(matches, &copied)
		}
	}
	sortBySeq(r.store.order, matches, func(u *entity.User) uuid.UUID { return u.ID })

	return matches, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	r.store.users[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	if _, ok := r.store.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()

	stored := *user
	r.store.users[stored.ID] = &stored

	return nil
}

type fakeAccountRepo struct {
	store *memStore
}

func (r *fakeAccountRepo) FindByProvider(_ context.Context, provider, providerAccountID string) (*entity.Account, error) {
	if r.store.accountLookupMisses > 0 {
		r.store.accountLookupMisses--

		return nil, repository.ErrAccountNotFound
	}

	for _, a := range r.store.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			copied := *a

			return &copied, nil
		}
	}

	return nil, repository.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Account, error) {
	var matches []*entity.Account
	for _, a := range r.store.accounts {
		if a.UserID == userID {
			copied := *a
			matches = append(matches, &copied)
		}
	}
	sortBySeq(r.store.order, matches, func(a *entity.Account) uuid.UUID { return a.ID })

	return matches, nil
}

func (r *fakeAccountRepo) Create(_ context.Context, account *entity.Account) error {
	for _, a := range r.store.accounts {
		if a.Provider == account.Provider && a.ProviderAccountID == account.ProviderAccountID {
			return repository.ErrAccountDuplicate
		}
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt

	stored := *account
	r.store.accounts[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeAccountRepo) UpdateSecret(_ context.Context, id uuid.UUID, secret string) error {
	a, ok := r.store.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}

	updated := *a
	updated.Secret = secret
	updated.UpdatedAt = time.Now()
	r.store.accounts[id] = &updated

	return nil
}

func (r *fakeAccountRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	for id, a := range r.store.accounts {
		if a.UserID == userID {
			delete(r.store.accounts, id)
			delete(r.store.order, id)
		}
	}

	return nil
}

type fakeCodeRepo struct {
	store *memStore
}

func (r *fakeCodeRepo) Create(_ context.Context, code *entity.VerificationCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	code.CreatedAt = time.Now()

	stored := *code
	r.store.codes[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeCodeRepo) FindByCodeHash(_ context.Context, provider, codeHash string) (*entity.VerificationCode, error) {
	for _, c := range r.store.codes {
		if c.Provider == provider && c.CodeHash == codeHash {
			copied := *c

			return &copied, nil
		}
	}

	return nil, repository.ErrVerificationCodeNotFound
}

func (r *fakeCodeRepo) MarkUsed(_ context.Context, id uuid.UUID) error {
	c, ok := r.store.codes[id]
	if !ok {
		return repository.ErrVerificationCodeNotFound
	}
	if c.UsedAt != nil {
		return repository.ErrVerificationCodeConsumed
	}

	used := *c
	now := time.Now()
	used.UsedAt = &now
	r.store.codes[id] = &used

	return nil
}

func (r *fakeCodeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.codes[id]; !ok {
		return repository.ErrVerificationCodeNotFound
	}
	delete(r.store.codes, id)
	delete(r.store.order, id)

	return nil
}

func (r *fakeCodeRepo) DeleteByAccountRef(_ context.Context, accountRef, provider string) error {
	for id, c := range r.store.codes {
		if c.AccountRef == accountRef && c.Provider == provider {
			delete(r.store.codes, id)
			delete(r.store.order, id)
		}
	}

	return nil
}

func (r *fakeCodeRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var deleted int64
	for id, c := range r.store.codes {
		if now.After(c.ExpiresAt) {
			delete(r.store.codes, id)
			delete(r.store.order, id)
			deleted++
		}
	}

	return deleted, nil
}

type fakeVerifierRepo struct {
	store *memStore
}

func (r *fakeVerifierRepo) Create(_ context.Context, verifier *entity.Verifier) error {
	if verifier.ID == uuid.Nil {
		verifier.ID = uuid.New()
	}
	verifier.CreatedAt = time.Now()

	stored := *verifier
	r.store.verifiers[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeVerifierRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Verifier, error) {
	if v, ok := r.store.verifiers[id]; ok {
		copied := *v

		return &copied, nil
	}

	return nil, repository.ErrVerifierNotFound
}

func (r *fakeVerifierRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.verifiers[id]; !ok {
		return repository.ErrVerifierNotFound
	}
	delete(r.store.verifiers, id)
	delete(r.store.order, id)

	return nil
}

func (r *fakeVerifierRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var deleted int64
	for id, v := range r.store.verifiers {
		if now.After(v.ExpiresAt) {
			delete(r.store.verifiers, id)
			delete(r.store.order, id)
			deleted++
		}
	}

	return deleted, nil
}

type fakeSessionRepo struct {
	store *memStore
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()

	stored := *session
	r.store.sessions[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	if s, ok := r.store.sessions[id]; ok {
		copied := *s

		return &copied, nil
	}

	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	var matches []*entity.Session
	for _, s := range r.store.sessions {
		if s.UserID == userID {
			copied := *s
			matches = append(matches, &copied)
		}
	}
	sortBySeq(r.store.order, matches, func(s *entity.Session) uuid.UUID { return s.ID })

	return matches, nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.store.sessions, id)
	delete(r.store.order, id)

	return nil
}

func (r *fakeSessionRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	for id, s := range r.store.sessions {
		if s.UserID == userID {
			delete(r.store.sessions, id)
			delete(r.store.order, id)
		}
	}

	return nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var deleted int64
	for id, s := range r.store.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.store.sessions, id)
			delete(r.store.order, id)
			deleted++
		}
	}

	return deleted, nil
}

func (r *fakeSessionRepo) CountActiveByUserID(_ context.Context, userID uuid.UUID) (int, error) {
	now := time.Now()
	count := 0
	for _, s := range r.store.sessions {
		if s.UserID == userID && !now.After(s.ExpiresAt) {
			count++
		}
	}

	return count, nil
}

type fakeRefreshTokenRepo struct {
	store *memStore
}

func (r *fakeRefreshTokenRepo) Create(_ context.Context, token *entity.RefreshToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()

	stored := *token
	r.store.refreshTokens[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeRefreshTokenRepo) FindByTokenHash(_ context.Context, tokenHash string) (*entity.RefreshToken, error) {
	for _, t := range r.store.refreshTokens {
		if t.TokenHash == tokenHash {
			copied := *t

			return &copied, nil
		}
	}

	return nil, repository.ErrRefreshTokenNotFound
}

func (r *fakeRefreshTokenRepo) MarkRotated(_ context.Context, id uuid.UUID) error {
	t, ok := r.store.refreshTokens[id]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	if t.Rotated {
		return repository.ErrRefreshTokenRotated
	}

	rotated := *t
	rotated.Rotated = true
	r.store.refreshTokens[id] = &rotated

	return nil
}

func (r *fakeRefreshTokenRepo) DeleteBySessionID(_ context.Context, sessionID uuid.UUID) error {
	for id, t := range r.store.refreshTokens {
		if t.SessionID == sessionID {
			delete(r.store.refreshTokens, id)
			delete(r.store.order, id)
		}
	}

	return nil
}

func (r *fakeRefreshTokenRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	for id, t := range r.store.refreshTokens {
		if t.UserID == userID {
			delete(r.store.refreshTokens, id)
			delete(r.store.order, id)
		}
	}

	return nil
}

func (r *fakeRefreshTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var deleted int64
	for id, t := range r.store.refreshTokens {
		if now.After(t.ExpiresAt) {
			delete(r.store.refreshTokens, id)
			delete(r.store.order, id)
			deleted++
		}
	}

	return deleted, nil
}

type fakeAuditEventRepo struct {
	store *memStore
}

func (r *fakeAuditEventRepo) Create(_ context.Context, event *entity.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, ok := r.store.auditEvents[event.ID]; ok {
		// At-least-once delivery; the duplicate row is dropped.
		return nil
	}
	event.CreatedAt = time.Now()

	stored := *event
	r.store.auditEvents[stored.ID] = &stored
	r.store.nextSeq(stored.ID)

	return nil
}

func (r *fakeAuditEventRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*entity.AuditEvent, error) {
	var matches []*entity.AuditEvent
	for _, e := range r.store.auditEvents {
		if e.UserID == userID {
			copied := *e
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].OccurredAt.Equal(matches[j].OccurredAt) {
			return matches[i].OccurredAt.After(matches[j].OccurredAt)
		}

		return r.store.order[matches[i].ID] > r.store.order[matches[j].ID]
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

func (r *fakeAuditEventRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, e := range r.store.auditEvents {
		if e.OccurredAt.Before(cutoff) {
			delete(r.store.auditEvents, id)
			delete(r.store.order, id)
			deleted++
		}
	}

	return deleted, nil
}

// sortBySeq orders rows by insertion sequence, oldest first.
func sortBySeq[T any](order map[uuid.UUID]int, rows []T, id func(T) uuid.UUID) {
	sort.Slice(rows, func(i, j int) bool {
		return order[id(rows[i])] < order[id(rows[j])]
	})
}

// fakePublisher records published events and can be told to fail.
type fakePublisher struct {
	mu     sync.Mutex
	events []*service.AuthEvent
	err    error
}

func (p *fakePublisher) PublishAuthEvent(_ context.Context, event *service.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	copied := *event
	p.events = append(p.events, &copied)

	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	kinds := make([]string, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}

	return kinds
}

func (p *fakePublisher) countKind(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, e := range p.events {
		if e.Kind == kind {
			count++
		}
	}

	return count
}

// fakeMetrics records counter calls.
type fakeMetrics struct {
	mu              sync.Mutex
	links           []string
	newUserLinks    int
	issued          []string
	redeemed        map[string]int
	reuseDetections int
	sessionsCreated int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{redeemed: make(map[string]int)}
}

func (m *fakeMetrics) LinkRecorded(_ context.Context, provider string, isNewUser bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.links = append(m.links, provider)
	if isNewUser {
		m.newUserLinks++
	}
}

func (m *fakeMetrics) CodeIssued(_ context.Context, provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.issued = append(m.issued, provider)
}

func (m *fakeMetrics) CodeRedeemed(_ context.Context, _ string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.redeemed[outcome]++
}

func (m *fakeMetrics) RefreshReuseDetected(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reuseDetections++
}

func (m *fakeMetrics) SessionCreated(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessionsCreated++
}

func (m *fakeMetrics) redeemedCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.redeemed[outcome]
}

// fakeSender records delivered codes and can be told to fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

type sentCode struct {
	method     entity.AuthMethod
	accountRef string
	code       string
}

func (s *fakeSender) SendCode(_ context.Context, method entity.AuthMethod, accountRef, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCode{method: method, accountRef: accountRef, code: code})

	return nil
}

func (s *fakeSender) last() (sentCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sent) == 0 {
		return sentCode{}, false
	}

	return s.sent[len(s.sent)-1], true
}

// fakeTokenService mints recognizable, deterministic tokens.
type fakeTokenService struct {
	mu              sync.Mutex
	counter         int
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func newFakeTokenService() *fakeTokenService {
	return &fakeTokenService{
		accessDuration:  15 * time.Minute,
		refreshDuration: 720 * time.Hour,
	}
}

func (t *fakeTokenService) GenerateAccessToken(userID, sessionID uuid.UUID) (string, error) {
	return "access." + userID.String() + "." + sessionID.String(), nil
}

func (t *fakeTokenService) ValidateToken(tokenString string) (*service.Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] != "access" {
		return nil, errors.New("token is not in the fake format")
	}

	userID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, errors.Wrap(err, "bad user id in token")
	}
	sessionID, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, errors.Wrap(err, "bad session id in token")
	}

	return &service.Claims{UserID: userID, SessionID: sessionID}, nil
}

func (t *fakeTokenService) NewRefreshToken() (string, string, error) {
	t.mu.Lock()
	t.counter++
	raw := fmt.Sprintf("refresh-token-%d", t.counter)
	t.mu.Unlock()

	return raw, t.HashToken(raw), nil
}

func (t *fakeTokenService) HashToken(raw string) string {
	return "hash:" + raw
}

func (t *fakeTokenService) PublicKeySet() ([]byte, error) {
	return []byte(`{"keys":[]}`), nil
}

func (t *fakeTokenService) GetAccessTokenDuration() time.Duration {
	return t.accessDuration
}

func (t *fakeTokenService) GetRefreshTokenDuration() time.Duration {
	return t.refreshDuration
}

// fakeQRCodeService renders links as marker bytes.
type fakeQRCodeService struct{}

func (q *fakeQRCodeService) GenerateSignInQR(link string) ([]byte, error) {
	return []byte("qr:" + link), nil
}

// fakeHasher hashes transparently so tests can assert on stored values.
type fakeHasher struct{}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Check(password, hash string) bool {
	return hash == "hashed:"+password
}
