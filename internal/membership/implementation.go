package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"loanledger/internal/audit"
	"loanledger/internal/store"
)

// service implements the Service interface.
type service struct {
	mu      sync.RWMutex
	members map[string]*Member
	order   []string // roster insertion order

	snap    store.Collection[Record]
	rec     audit.Recorder
	log     *zap.Logger
	limiter *rate.Limiter
}

// NewService loads the member roster. A fresh deployment is seeded with
// the default admin account so the system is administrable from the
// first boot.
func NewService(ctx context.Context, snap store.Collection[Record], rec audit.Recorder, log *zap.Logger) (Service, error) {
	records, err := snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	s := &service{
		members: make(map[string]*Member, len(records)),
		snap:    snap,
		rec:     rec,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	for _, r := range records {
		m := fromRecord(r)
		s.members[m.Username] = &m
		s.order = append(s.order, m.Username)
	}

	if len(s.members) == 0 {
		if err := s.seedAdmin(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *service) seedAdmin(ctx context.Context) error {
	hash, salt, err := hashPassword("admin123")
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	admin := &Member{
		Username:     "admin",
		PasswordHash: hash,
		Salt:         salt,
		FirstName:    "Admin",
		LastName:     "User",
		Email:        "admin@library.com",
		Role:         RoleAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	s.members[admin.Username] = admin
	s.order = append(s.order, admin.Username)
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.log.Info("seeded default admin account")
	return nil
}

// snapshot builds the persisted form in roster order. Callers hold mu.
func (s *service) snapshot() []Record {
	out := make([]Record, 0, len(s.order))
	for _, username := range s.order {
		out = append(out, toRecord(*s.members[username]))
	}
	return out
}

func (s *service) persist(ctx context.Context) error {
	if err := s.snap.Replace(ctx, s.snapshot()); err != nil {
		return fmt.Errorf("%w: persist members: %v", store.ErrStorage, err)
	}
	return nil
}

func (s *service) record(ctx context.Context, action string, actor audit.Actor, details string) {
	if err := s.rec.Record(ctx, audit.New(action, actor, details)); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

func (s *service) Register(ctx context.Context, actor audit.Actor, username, password, firstName, lastName, email, role string) (*Member, error) {
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[username]; exists {
		return nil, ErrDuplicateUsername
	}

	member := &Member{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	s.members[username] = member
	s.order = append(s.order, username)

	if err := s.persist(ctx); err != nil {
		delete(s.members, username)
		s.order = s.order[:len(s.order)-1]
		return nil, err
	}

	s.record(ctx, "Register Member", actor, fmt.Sprintf("registered %s (%s)", username, role))
	s.log.Info("member registered", zap.String("username", username), zap.String("role", role))
	copied := *member
	return &copied, nil
}

func (s *service) Authenticate(ctx context.Context, username, password string) (*Member, error) {
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	s.mu.RLock()
	member, ok := s.members[username]
	if ok {
		m := *member
		member = &m
	}
	s.mu.RUnlock()

	if !ok || !member.Active {
		return nil, ErrInvalidCredentials
	}

	valid, err := verifyPassword(password, member.Salt, member.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	return member, nil
}

func (s *service) Member(ctx context.Context, username string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *member
	return &copied, nil
}

func (s *service) Members(ctx context.Context) []*Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Member, 0, len(s.order))
	for _, username := range s.order {
		copied := *s.members[username]
		out = append(out, &copied)
	}
	return out
}

func (s *service) IsEligible(ctx context.Context, username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[username]
	return ok && member.Active && member.Role == RoleUser
}

func (s *service) SetActive(ctx context.Context, actor audit.Actor, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[username]
	if !ok {
		return ErrNotFound
	}

	prev := member.Active
	member.Active = active
	if err := s.persist(ctx); err != nil {
		member.Active = prev
		return err
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	s.record(ctx, "Update Member", actor, fmt.Sprintf("%s %s", state, username))
	return nil
}

func (s *service) SetRole(ctx context.Context, actor audit.Actor, username, role string) error {
	if !validRole(role) {
		return ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[username]
	if !ok {
		return ErrNotFound
	}

	prev := member.Role
	member.Role = role
	if err := s.persist(ctx); err != nil {
		member.Role = prev
		return err
	}

	s.record(ctx, "Update Member", actor, fmt.Sprintf("changed role of %s to %s", username, role))
	return nil
}

func (s *service) ChangePassword(ctx context.Context, actor audit.Actor, username, newPassword string) error {
	hash, salt, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[username]
	if !ok {
		return ErrNotFound
	}

	prevHash, prevSalt := member.PasswordHash, member.Salt
	member.PasswordHash = hash
	member.Salt = salt
	if err := s.persist(ctx); err != nil {
		member.PasswordHash, member.Salt = prevHash, prevSalt
		return err
	}

	s.record(ctx, "Update Member", actor, fmt.Sprintf("changed password of %s", username))
	return nil
}
