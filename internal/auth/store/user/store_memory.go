package user

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"warden/internal/auth/models"
	id "warden/pkg/domain"
)

type providerKey struct {
	provider   id.Provider
	providerID string
}

// InMemoryUserStore keeps users and links in maps under one lock, so the
// multi-record operations are atomic. Records are copied on the way in
// and out.
type InMemoryUserStore struct {
	mu       sync.RWMutex
	users    map[id.UserID]*models.User
	accounts map[id.OAuthAccountID]*models.OAuthAccount
	byLink   map[providerKey]id.OAuthAccountID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:    make(map[id.UserID]*models.User),
		accounts: make(map[id.OAuthAccountID]*models.OAuthAccount),
		byLink:   make(map[providerKey]id.OAuthAccountID),
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneAccount(a *models.OAuthAccount) *models.OAuthAccount {
	c := *a
	return &c
}

// conflictLocked checks u against every other user. Caller holds mu.
func (s *InMemoryUserStore) conflictLocked(u *models.User) error {
	for _, other := range s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return ErrUsernameTaken
		}
		if other.Email == u.Email {
			return ErrEmailTaken
		}
	}
	return nil
}

func (s *InMemoryUserStore) accountConflictLocked(a *models.OAuthAccount) error {
	if _, ok := s.byLink[providerKey{a.Provider, a.ProviderID}]; ok {
		return ErrIdentityLinked
	}
	for _, existing := range s.accounts {
		if existing.UserID == a.UserID && existing.Provider == a.Provider {
			return ErrProviderAlreadyLinked
		}
	}
	return nil
}

func (s *InMemoryUserStore) putAccountLocked(a *models.OAuthAccount) {
	s.accounts[a.ID] = cloneAccount(a)
	s.byLink[providerKey{a.Provider, a.ProviderID}] = a.ID
}

func (s *InMemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conflictLocked(u); err != nil {
		return err
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *InMemoryUserStore) CreateWithAccount(_ context.Context, u *models.User, a *models.OAuthAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conflictLocked(u); err != nil {
		return err
	}
	if err := s.accountConflictLocked(a); err != nil {
		return err
	}
	s.users[u.ID] = cloneUser(u)
	s.putAccountLocked(a)
	return nil
}

func (s *InMemoryUserStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return errUserNotFound()
	}
	if err := s.conflictLocked(u); err != nil {
		return err
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

// Delete removes the user and its links.
func (s *InMemoryUserStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return errUserNotFound()
	}
	delete(s.users, userID)
	for accID, a := range s.accounts {
		if a.UserID == userID {
			delete(s.accounts, accID)
			delete(s.byLink, providerKey{a.Provider, a.ProviderID})
		}
	}
	return nil
}

func (s *InMemoryUserStore) LinkAccount(_ context.Context, u *models.User, a *models.OAuthAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return errUserNotFound()
	}
	if err := s.accountConflictLocked(a); err != nil {
		return err
	}
	if err := s.conflictLocked(u); err != nil {
		return err
	}
	s.users[u.ID] = cloneUser(u)
	s.putAccountLocked(a)
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return cloneUser(u), nil
	}
	return nil, errUserNotFound()
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, errUserNotFound()
}

// FindByIdentifier matches a username exactly or an email case-insensitively.
func (s *InMemoryUserStore) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == identifier || strings.EqualFold(u.Email, identifier) {
			return cloneUser(u), nil
		}
	}
	return nil, errUserNotFound()
}

func (s *InMemoryUserStore) FindAccount(_ context.Context, provider id.Provider, providerID string) (*models.OAuthAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accID, ok := s.byLink[providerKey{provider, providerID}]
	if !ok {
		return nil, errAccountNotFound()
	}
	return cloneAccount(s.accounts[accID]), nil
}

func (s *InMemoryUserStore) TouchAccount(_ context.Context, accountID id.OAuthAccountID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return errAccountNotFound()
	}
	a.UpdatedAt = now
	return nil
}

func (s *InMemoryUserStore) accountsForLocked(userID id.UserID) []*models.OAuthAccount {
	var out []*models.OAuthAccount
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, cloneAccount(a))
		}
	}
	slices.SortFunc(out, func(a, b *models.OAuthAccount) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *InMemoryUserStore) ListAccountsByUser(_ context.Context, userID id.UserID) ([]*models.OAuthAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountsForLocked(userID), nil
}

func (s *InMemoryUserStore) matchesLocked(u *models.User, f models.UserFilter) bool {
	if f.Active != nil && u.Active != *f.Active {
		return false
	}
	if f.Provider == "" {
		return true
	}
	accounts := s.accountsForLocked(u.ID)
	if f.Provider == id.ProviderFilterPasswordless {
		return len(accounts) == 0
	}
	for _, a := range accounts {
		if string(a.Provider) == f.Provider {
			return true
		}
	}
	return false
}

// List returns one page ordered by creation time, newest first, and the total match count.
func (s *InMemoryUserStore) List(_ context.Context, f models.UserFilter) ([]models.UserWithAccounts, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.User
	for _, u := range s.users {
		if s.matchesLocked(u, f) {
			matched = append(matched, u)
		}
	}
	slices.SortFunc(matched, func(a, b *models.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)

	page := make([]models.UserWithAccounts, 0, end-start)
	for _, u := range matched[start:end] {
		page = append(page, models.UserWithAccounts{User: cloneUser(u), Accounts: s.accountsForLocked(u.ID)})
	}
	return page, total, nil
}

func (s *InMemoryUserStore) hasAccountLocked(userID id.UserID) bool {
	for _, a := range s.accounts {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// DeleteUnverifiedBefore removes never-verified users created before cutoff
// that own no OAuth link, returning their ids.
func (s *InMemoryUserStore) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) ([]id.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted []id.UserID
	for uid, u := range s.users {
		if !u.EmailVerified && u.CreatedAt.Before(cutoff) && !s.hasAccountLocked(uid) {
			delete(s.users, uid)
			deleted = append(deleted, uid)
		}
	}
	return deleted, nil
}

// DeleteStaleAccounts removes links not used since cutoff whose owner is inactive.
func (s *InMemoryUserStore) DeleteStaleAccounts(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for accID, a := range s.accounts {
		owner, ok := s.users[a.UserID]
		if !a.UpdatedAt.Before(cutoff) || (ok && owner.Active) {
			continue
		}
		delete(s.accounts, accID)
		delete(s.byLink, providerKey{a.Provider, a.ProviderID})
		n++
	}
	return n, nil
}
