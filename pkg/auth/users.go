package auth

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User is a registered account. The password is only kept as a bcrypt hash.
type User struct {
	Username     string
	Email        string
	passwordHash []byte
}

// UserStore is an in-memory user registry safe for concurrent use.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]User
	cost  int
}

// NewUserStore returns an empty store hashing passwords with cost.
// A cost outside bcrypt's range uses bcrypt.DefaultCost.
func NewUserStore(cost int) *UserStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &UserStore{users: make(map[string]User), cost: cost}
}

// Create registers a new user. Usernames are unique. Passwords longer than
// bcrypt's 72-byte input limit are rejected with ErrPasswordLong.
func (s *UserStore) Create(username, password, email string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidSignup
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return User{}, ErrPasswordLong
	}
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return User{}, ErrUserExists
	}
	u := User{Username: username, Email: email, passwordHash: hash}
	s.users[username] = u
	return u, nil
}

// Verify checks a username/password pair. Unknown users and wrong passwords
// both return ErrInvalidCredentials.
func (s *UserStore) Verify(username, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.users[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Len returns the number of registered users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
