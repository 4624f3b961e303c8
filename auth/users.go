package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username already taken")
)

type User struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// UserDirectory keeps accounts in memory with bcrypt password hashes.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]User
	cost  int
}

func NewUserDirectory(cost int) *UserDirectory {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserDirectory{users: make(map[string]User), cost: cost}
}

// NewSeededDirectory adds the two demo accounts: user/password and admin/admin123.
func NewSeededDirectory(cost int) (*UserDirectory, error) {
	d := NewUserDirectory(cost)
	if _, err := d.Add("user", "password", RoleUser); err != nil {
		return nil, err
	}
	if _, err := d.Add("admin", "admin123", RoleUser, RoleAdmin); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *UserDirectory) Add(username, password string, roles ...string) (User, error) {
	username = strings.TrimSpace(username)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[username]; exists {
		return User{}, ErrUserExists
	}
	u := User{Username: username, PasswordHash: string(hash), Roles: roles}
	d.users[username] = u
	return u, nil
}

// Register creates a USER account.
func (d *UserDirectory) Register(username, password string) (User, error) {
	return d.Add(username, password, RoleUser)
}

func (d *UserDirectory) Authenticate(username, password string) (User, error) {
	d.mu.RLock()
	u, ok := d.users[strings.TrimSpace(username)]
	d.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
