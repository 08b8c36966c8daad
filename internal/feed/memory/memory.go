// Package memory is an in-process feed seeded from a JSON file. It backs
// local development and tests; any non-empty password signs in.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"budgetboard/internal/aggregate"
	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"
)

const tokenPrefix = "mem:"

// Ensure interface conformance
var (
	_ feed.TransactionSource = (*Store)(nil)
	_ feed.Directory         = (*Store)(nil)
	_ feed.Authenticator     = (*Store)(nil)
)

type Store struct {
	mu      sync.Mutex
	family  string
	members []core.Member
	items   []core.Transaction
}

// seedFile is the seed layout: either a bare transactions array or an object
// with family metadata.
type seedFile struct {
	Family       string          `json:"family"`
	Members      json.RawMessage `json:"members"`
	Transactions json.RawMessage `json:"transactions"`
}

func New(family string, members []core.Member, txs []core.Transaction) *Store {
	s := &Store{family: family, members: append([]core.Member(nil), members...)}
	s.Add(txs...)
	return s
}

// NewFromFile loads a seed file. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New("", nil, nil), nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		txs, _, err := feed.DecodeTransactions(data)
		if err != nil {
			return nil, err
		}
		return New("", nil, txs), nil
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	txs, _, err := feed.DecodeTransactions(seed.Transactions)
	if err != nil {
		return nil, err
	}
	var members []core.Member
	if len(seed.Members) > 0 {
		if members, err = feed.DecodeMembers(seed.Members); err != nil {
			return nil, err
		}
	}
	return New(seed.Family, members, txs), nil
}

// Add appends transactions.
func (s *Store) Add(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, txs...)
}

// FetchTransactions returns the stored transactions matching f. Personal
// scope is limited to the token's user.
func (s *Store) FetchTransactions(_ context.Context, token string, f feed.Filter) ([]core.Transaction, error) {
	user, err := userFromToken(token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	items := append([]core.Transaction(nil), s.items...)
	s.mu.Unlock()

	if f.Scope != feed.Family {
		items = feed.Filter{Owner: user}.Apply(items)
	}
	return f.Apply(items), nil
}

// FetchProfile derives the profile from the token.
func (s *Store) FetchProfile(_ context.Context, token string) (core.Profile, error) {
	user, err := userFromToken(token)
	if err != nil {
		return core.Profile{}, err
	}
	p := core.Profile{Username: user, Family: s.family, Role: "parent"}
	for _, m := range s.memberList() {
		if strings.EqualFold(m.Username, user) {
			p.ID, p.Role = m.ID, m.Role
		}
	}
	return p, nil
}

// FetchMembers returns the seeded members, or the distinct owners when none
// were seeded.
func (s *Store) FetchMembers(_ context.Context, token string) ([]core.Member, error) {
	if _, err := userFromToken(token); err != nil {
		return nil, err
	}
	return s.memberList(), nil
}

// Login accepts any non-empty password. The username is the email's local part.
func (s *Store) Login(_ context.Context, email, password string) (remote.LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return remote.LoginResult{}, remote.ErrInvalidCredentials
	}
	user, _, _ := strings.Cut(email, "@")
	return remote.LoginResult{
		Token: tokenPrefix + user,
		User:  remote.LoginUser{Username: user, Email: email},
	}, nil
}

// Register adds a member and signs them in. Usernames are unique, compared
// without case.
func (s *Store) Register(_ context.Context, reg remote.Registration) (remote.LoginResult, error) {
	user := strings.TrimSpace(reg.Username)
	email := strings.TrimSpace(reg.Email)
	fe := remote.FieldErrors{}
	if user == "" {
		fe["username"] = []string{"This field is required."}
	}
	if email == "" {
		fe["email"] = []string{"This field is required."}
	}
	if reg.Password == "" {
		fe["password"] = []string{"This field is required."}
	} else if reg.Password != reg.Password2 {
		fe["password"] = []string{"Password fields didn't match."}
	}
	if len(fe) > 0 {
		return remote.LoginResult{}, fe
	}
	role := reg.RoleName
	if role == "" {
		role = remote.DefaultRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.membersLocked()
	for _, m := range members {
		if strings.EqualFold(m.Username, user) {
			return remote.LoginResult{}, remote.FieldErrors{"username": {"A user with that username already exists."}}
		}
	}
	s.members = append(members, core.Member{ID: user, Username: user, Role: role})

	return remote.LoginResult{
		Token: tokenPrefix + user,
		User:  remote.LoginUser{Username: user, Email: email, Role: role},
	}, nil
}

func (s *Store) memberList() []core.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersLocked()
}

func (s *Store) membersLocked() []core.Member {
	if len(s.members) > 0 {
		return append([]core.Member(nil), s.members...)
	}
	owners := aggregate.Owners(s.items)
	out := make([]core.Member, 0, len(owners))
	for _, o := range owners {
		if o == core.UnknownOwner {
			continue
		}
		out = append(out, core.Member{Username: o, Role: "member"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func userFromToken(token string) (string, error) {
	user, ok := strings.CutPrefix(strings.TrimSpace(token), tokenPrefix)
	if !ok || user == "" {
		return "", remote.ErrUnauthorized
	}
	return user, nil
}
