package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/repository"
	"gopkg.in/guregu/null.v4"
)

type memLots struct {
	mu     sync.Mutex
	nextID int
	lots   map[int]domain.ParkingLot
}

func newMemLots(lots ...domain.ParkingLot) *memLots {
	m := &memLots{lots: make(map[int]domain.ParkingLot)}
	for _, l := range lots {
		m.lots[l.ID] = l
		if l.ID > m.nextID {
			m.nextID = l.ID
		}
	}
	return m
}

func (m *memLots) Create(_ context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lot.FreeSpots < 0 || lot.FreeSpots > lot.Capacity {
		return nil, repository.ErrOutOfRange
	}
	m.nextID++
	created := *lot
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.lots[created.ID] = created
	return &created, nil
}

func (m *memLots) FindByID(_ context.Context, id int) (*domain.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lot, ok := m.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &lot, nil
}

func (m *memLots) FindAll(_ context.Context) ([]domain.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ParkingLot, 0, len(m.lots))
	for _, l := range m.lots {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLots) Update(_ context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[lot.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	if lot.FreeSpots < 0 || lot.FreeSpots > lot.Capacity {
		return nil, repository.ErrOutOfRange
	}
	updated := *lot
	updated.UpdatedAt = time.Now()
	m.lots[lot.ID] = updated
	return &updated, nil
}

func (m *memLots) UpdateFreeSpots(_ context.Context, id int, freeSpots int) (*domain.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lot, ok := m.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if freeSpots < 0 || freeSpots > lot.Capacity {
		return nil, repository.ErrOutOfRange
	}
	lot.FreeSpots = freeSpots
	lot.OccupancyUpdatedAt = null.TimeFrom(time.Now())
	m.lots[id] = lot
	return &lot, nil
}

func (m *memLots) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.lots, id)
	return nil
}

func (m *memLots) get(id int) domain.ParkingLot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lots[id]
}

type memCameras struct {
	mu      sync.Mutex
	nextID  int
	cameras map[int]domain.Camera
	// apiLookups counts FindByAPI calls.
	apiLookups int
}

func newMemCameras(cams ...domain.Camera) *memCameras {
	m := &memCameras{cameras: make(map[int]domain.Camera)}
	for _, c := range cams {
		m.cameras[c.ID] = c
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
	return m
}

func (m *memCameras) apiTaken(api string, exceptID int) bool {
	for _, c := range m.cameras {
		if c.API == api && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memCameras) Create(_ context.Context, cam *domain.Camera) (*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.apiTaken(cam.API, 0) {
		return nil, repository.ErrDuplicateEntry
	}
	m.nextID++
	created := *cam
	created.ID = m.nextID
	m.cameras[created.ID] = created
	return &created, nil
}

func (m *memCameras) FindByID(_ context.Context, id int) (*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cam, ok := m.cameras[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cam, nil
}

func (m *memCameras) FindByAPI(_ context.Context, api string) (*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiLookups++
	for _, c := range m.cameras {
		if c.API == api {
			cam := c
			return &cam, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memCameras) FindAll(_ context.Context) ([]domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Camera, 0, len(m.cameras))
	for _, c := range m.cameras {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCameras) FindByLotID(_ context.Context, lotID int) ([]domain.Camera, error) {
	all, _ := m.FindAll(context.Background())
	out := []domain.Camera{}
	for _, c := range all {
		if c.ParkingLotID == lotID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCameras) Update(_ context.Context, cam *domain.Camera) (*domain.Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[cam.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	if m.apiTaken(cam.API, cam.ID) {
		return nil, repository.ErrDuplicateEntry
	}
	m.cameras[cam.ID] = *cam
	updated := *cam
	return &updated, nil
}

func (m *memCameras) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.cameras, id)
	return nil
}

type memUsers struct {
	mu     sync.Mutex
	nextID int
	users  map[int]domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int]domain.User)}
}

func (m *memUsers) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return nil, repository.ErrDuplicateEntry
		}
	}
	m.nextID++
	created := *user
	created.ID = m.nextID
	m.users[created.ID] = created
	return &created, nil
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id int) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) FindAll(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, u := range m.users {
		if u.Username == user.Username && u.ID != user.ID {
			return nil, repository.ErrDuplicateEntry
		}
	}
	m.users[user.ID] = *user
	updated := *user
	return &updated, nil
}

func (m *memUsers) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// stubForwarder records forwarded requests and replays a canned answer.
type stubForwarder struct {
	mu       sync.Mutex
	requests []domain.InferenceRequest
	result   *domain.InferenceResult
	err      error
}

func (f *stubForwarder) Forward(_ context.Context, req domain.InferenceRequest) (*domain.InferenceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *stubForwarder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.OccupancyNotification
}

func (n *recordingNotifier) NotifyOccupancy(_ context.Context, ev domain.OccupancyNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// gatedCameras holds FindByAPI after the row is read until release is closed.
type gatedCameras struct {
	*memCameras
	fetched chan struct{}
	release chan struct{}
}

func (g *gatedCameras) FindByAPI(ctx context.Context, api string) (*domain.Camera, error) {
	cam, err := g.memCameras.FindByAPI(ctx, api)
	close(g.fetched)
	<-g.release
	return cam, err
}
