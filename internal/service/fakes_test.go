package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/storage"
)

type fakeLetterRepo struct {
	mu        sync.Mutex
	letters   map[string]*domain.Letter
	updateErr error
}

func newFakeLetterRepo(letters ...*domain.Letter) *fakeLetterRepo {
	r := &fakeLetterRepo{letters: map[string]*domain.Letter{}}
	for _, l := range letters {
		if l.Attachments == nil {
			l.Attachments = domain.Attachments{}
		}
		r.letters[l.SerialNumber] = l.Clone()
	}
	return r
}

func (r *fakeLetterRepo) get(serial string) *domain.Letter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.letters[serial]; ok {
		return l.Clone()
	}
	return nil
}

func (r *fakeLetterRepo) Create(_ context.Context, letter *domain.Letter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.letters[letter.SerialNumber]; ok {
		return repository.ErrDuplicateSerial
	}
	letter.CreatedAt = time.Now()
	r.letters[letter.SerialNumber] = letter.Clone()
	return nil
}

func (r *fakeLetterRepo) GetBySerial(_ context.Context, serial string) (*domain.Letter, error) {
	if l := r.get(serial); l != nil {
		return l, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeLetterRepo) Exists(_ context.Context, serial string) (bool, error) {
	return r.get(serial) != nil, nil
}

func (r *fakeLetterRepo) matching(filter repository.LetterFilter) []domain.Letter {
	r.mu.Lock()
	defer r.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []domain.Letter{}
	for _, l := range r.letters {
		switch {
		case filter.AllSectors:
		case filter.Sector != nil && *filter.Sector == l.TargetSector:
		default:
			continue
		}
		if term != "" {
			switch filter.SearchType {
			case repository.SearchSerial:
				if strings.ToLower(l.SerialNumber) != term {
					continue
				}
			case repository.SearchDate:
				if !strings.Contains(l.DateReceived.Format("2006-01-02"), term) {
					continue
				}
			default:
				if !strings.Contains(strings.ToLower(l.SerialNumber), term) &&
					!strings.Contains(strings.ToLower(l.SenderName), term) &&
					!strings.Contains(strings.ToLower(l.LetterType), term) {
					continue
				}
			}
		}
		out = append(out, *l.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateReceived.Equal(out[j].DateReceived) {
			return out[i].DateReceived.After(out[j].DateReceived)
		}
		return out[i].SerialNumber < out[j].SerialNumber
	})
	return out
}

func (r *fakeLetterRepo) List(_ context.Context, filter repository.LetterFilter) ([]domain.Letter, error) {
	out := r.matching(filter)
	if filter.Limit <= 0 {
		return out, nil
	}
	if filter.Offset >= len(out) {
		return []domain.Letter{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[filter.Offset:end], nil
}

func (r *fakeLetterRepo) Count(_ context.Context, filter repository.LetterFilter) (domain.ReplyCounts, error) {
	var counts domain.ReplyCounts
	for _, l := range r.matching(filter) {
		counts.Total++
		if l.Reply.IsReplied() {
			counts.Resolved++
		}
	}
	counts.Pending = counts.Total - counts.Resolved
	return counts, nil
}

func (r *fakeLetterRepo) UpdateLocked(_ context.Context, serial string, mutate repository.LetterMutation) (*domain.Letter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.letters[serial]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	if next.SerialNumber != serial {
		if _, taken := r.letters[next.SerialNumber]; taken {
			return nil, repository.ErrDuplicateSerial
		}
		delete(r.letters, serial)
	}
	r.letters[next.SerialNumber] = next.Clone()
	return next, nil
}

func (r *fakeLetterRepo) Delete(_ context.Context, serial string) (*domain.Letter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.letters[serial]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.letters, serial)
	return current.Clone(), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	r.seq++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", r.seq)
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context, _ repository.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *fakeUserRepo) DeleteNonSuperuser(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsSuperuser {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

type fakeSessions struct {
	byID    map[string]string
	revoked []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[string]string{}}
}

func (s *fakeSessions) Save(_ context.Context, session domain.Session) error {
	s.byID[session.ID] = session.UserID
	return nil
}

func (s *fakeSessions) Lookup(_ context.Context, id string) (string, error) {
	if uid, ok := s.byID[id]; ok {
		return uid, nil
	}
	return "", errors.New("missing")
}

func (s *fakeSessions) Revoke(_ context.Context, id string) error {
	delete(s.byID, id)
	return nil
}

func (s *fakeSessions) RevokeUser(_ context.Context, uid string) error {
	s.revoked = append(s.revoked, uid)
	for id, owner := range s.byID {
		if owner == uid {
			delete(s.byID, id)
		}
	}
	return nil
}

// memBlobs is a LocalStore over an in-memory filesystem that can be told to fail.
type memBlobs struct {
	*storage.LocalStore
	fs         afero.Fs
	failPut    bool
	failDelete bool
	puts       int
	deleted    []string
}

func newMemBlobs() *memBlobs {
	fs := afero.NewMemMapFs()
	return &memBlobs{LocalStore: storage.NewLocalStore(fs, "/media"), fs: fs}
}

func (b *memBlobs) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if b.failPut {
		return errors.New("disk full")
	}
	b.puts++
	return b.LocalStore.Put(ctx, key, body, size, contentType)
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	if b.failDelete {
		return errors.New("permission denied")
	}
	if err := b.LocalStore.Delete(ctx, key); err != nil {
		return err
	}
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *memBlobs) exists(key string) bool {
	ok, _ := afero.Exists(b.fs, "/media/"+key)
	return ok
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

func sectorActor(s domain.Sector) domain.Actor {
	return domain.Actor{UserID: "u-" + strings.ToLower(string(s)), Username: strings.ToLower(string(s)), Sector: &s}
}

func superActor() domain.Actor {
	return domain.Actor{UserID: "root", Username: "root", Superuser: true}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func letter(serial string, sector domain.Sector, received time.Time) *domain.Letter {
	return &domain.Letter{
		SerialNumber:   serial,
		DateReceived:   received,
		SenderName:     "Sender " + serial,
		LetterType:     "General Query",
		TargetSector:   sector,
		AdministeredBy: domain.OfficerSecretary,
		Attachments:    domain.Attachments{},
	}
}
