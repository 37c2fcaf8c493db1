// Package auth authenticates users against a credentials file and issues
// bearer tokens for the HTTP API.
package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"

	"github.com/verte-zerg/sprintwatch/internal/model"
)

// Status mirrors the login widget's tri-state result.
type Status int

// Authentication states.
const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnknownUser is returned by lookups for users not in the file.
	ErrUnknownUser = errors.New("unknown user")
)

// Identity is an authenticated user and their attributes.
type Identity struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Team        model.Team `json:"team"`
	IsAdmin     bool       `json:"is_admin"`
}

// User is one entry of the credentials file.
type User struct {
	Name     string `toml:"name"`
	Password string `toml:"password"`
	Team     string `toml:"team"`
	Admin    bool   `toml:"admin"`
}

type credentialsFile struct {
	Users map[string]User `toml:"users"`
}

// Provider serves identities from a TOML credentials file and persists team
// changes back to it.
type Provider struct {
	path string

	mu    sync.RWMutex
	users map[string]User
}

// LoadProvider reads the credentials file at path.
func LoadProvider(path string) (*Provider, error) {
	var f credentialsFile
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat credentials: %w", err)
		}
	} else if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	if f.Users == nil {
		f.Users = map[string]User{}
	}
	for name, u := range f.Users {
		if _, err := model.ParseTeam(u.Team); err != nil {
			return nil, fmt.Errorf("user %s: %w", name, err)
		}
	}
	return &Provider{path: path, users: f.Users}, nil
}

// Authenticate checks a password and returns the user's identity.
func (p *Provider) Authenticate(username, password string) (Identity, Status, error) {
	username = strings.TrimSpace(username)
	p.mu.RLock()
	u, ok := p.users[username]
	p.mu.RUnlock()
	if !ok {
		return Identity{}, StatusFailure, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return Identity{}, StatusFailure, ErrInvalidCredentials
	}
	return identity(username, u), StatusSuccess, nil
}

// Lookup returns the current identity of a user.
func (p *Provider) Lookup(username string) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[username]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return identity(username, u), nil
}

// Users returns all identities sorted by username.
func (p *Provider) Users() []Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Identity, 0, len(p.users))
	for name, u := range p.users {
		out = append(out, identity(name, u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// TeamMembers returns the usernames assigned to team, sorted.
func (p *Provider) TeamMembers(team model.Team) []string {
	var names []string
	for _, id := range p.Users() {
		if id.Team == team {
			names = append(names, id.Username)
		}
	}
	return names
}

// SetTeam changes a user's team and rewrites the credentials file.
func (p *Provider) SetTeam(username string, team model.Team) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	u.Team = string(team)
	return p.commitLocked(username, u)
}

// AddUser creates or replaces a user with a bcrypt hash of password.
func (p *Provider) AddUser(username, displayName, password string, team model.Team, admin bool) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if displayName == "" {
		displayName = username
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commitLocked(username, User{Name: displayName, Password: hash, Team: string(team), Admin: admin})
}

// HashPassword returns a bcrypt hash suitable for the credentials file.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// commitLocked writes the users file with u stored under username and only
// then replaces the in-memory users, so a failed write changes nothing.
func (p *Provider) commitLocked(username string, u User) error {
	next := make(map[string]User, len(p.users)+1)
	for name, existing := range p.users {
		next[name] = existing
	}
	next[username] = u
	if err := p.write(next); err != nil {
		return err
	}
	p.users = next
	return nil
}

func (p *Provider) write(users map[string]User) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(credentialsFile{Users: users}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "users-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close credentials: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func identity(username string, u User) Identity {
	name := u.Name
	if name == "" {
		name = username
	}
	return Identity{
		Username:    username,
		DisplayName: name,
		Team:        model.Team(u.Team),
		IsAdmin:     u.Admin,
	}
}
