package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// fakeStore is an in-memory stand-in for MySQL.  InTx holds one mutex for
// the whole transaction, which is at least as strong as the per-room row
// lock, and restores a snapshot when fn fails.
type fakeStore struct {
	mu           sync.Mutex
	rooms        map[uint64]*model.Room
	reservations map[uint64]*model.Reservation
	nextID       uint64
	txCount      int

	failFind   error
	failInsert error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:        map[uint64]*model.Room{},
		reservations: map[uint64]*model.Reservation{},
		nextID:       100,
	}
}

func (f *fakeStore) addRoom(id uint64, name string, capacity int, status model.RoomStatus) *model.Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm := &model.Room{ID: id, Name: name, Capacity: capacity, Location: "HQ", Status: status, IsActive: true}
	f.rooms[id] = rm
	return rm
}

func (f *fakeStore) addReservation(userID, roomID uint64, start, end time.Time) *model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	res := &model.Reservation{ID: f.nextID, Title: "seed", StartTime: start, EndTime: end, UserID: userID, RoomID: roomID}
	f.reservations[res.ID] = res
	return res
}

func (f *fakeStore) room(id uint64) model.Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rooms[id]
}

func (f *fakeStore) all() []model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Reservation, 0, len(f.reservations))
	for _, r := range f.reservations {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++

	rooms := make(map[uint64]model.Room, len(f.rooms))
	for id, r := range f.rooms {
		rooms[id] = *r
	}
	reservations := make(map[uint64]model.Reservation, len(f.reservations))
	for id, r := range f.reservations {
		reservations[id] = *r
	}
	nextID := f.nextID

	if err := fn(ctx, fakeTx{f}); err != nil {
		f.rooms = map[uint64]*model.Room{}
		for id, r := range rooms {
			f.rooms[id] = &r
		}
		f.reservations = map[uint64]*model.Reservation{}
		for id, r := range reservations {
			f.reservations[id] = &r
		}
		f.nextID = nextID
		return err
	}
	return nil
}

// fakeTx runs with f.mu held.
type fakeTx struct{ f *fakeStore }

func (t fakeTx) LockRoom(_ context.Context, id uint64) (*model.Room, error) {
	rm, ok := t.f.rooms[id]
	if !ok || !rm.IsActive {
		return nil, repository.ErrRoomNotFound
	}
	cp := *rm
	return &cp, nil
}

func (t fakeTx) GetReservationForUpdate(_ context.Context, id uint64) (*model.Reservation, error) {
	res, ok := t.f.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (t fakeTx) FindOverlapping(_ context.Context, roomID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	if t.f.failFind != nil {
		return nil, t.f.failFind
	}
	var out []model.Reservation
	for _, r := range t.f.reservations {
		if r.RoomID == roomID && r.ID != excludeID && r.Overlaps(start, end) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (t fakeTx) InsertReservation(_ context.Context, res *model.Reservation) error {
	if t.f.failInsert != nil {
		return t.f.failInsert
	}
	t.f.nextID++
	res.ID = t.f.nextID
	cp := *res
	t.f.reservations[res.ID] = &cp
	return nil
}

func (t fakeTx) UpdateReservation(_ context.Context, res *model.Reservation) error {
	if _, ok := t.f.reservations[res.ID]; !ok {
		return repository.ErrReservationNotFound
	}
	cp := *res
	t.f.reservations[res.ID] = &cp
	return nil
}

func (t fakeTx) DeleteReservation(_ context.Context, id uint64) error {
	if _, ok := t.f.reservations[id]; !ok {
		return repository.ErrReservationNotFound
	}
	delete(t.f.reservations, id)
	return nil
}

func (t fakeTx) CountLiveReservations(_ context.Context, roomID uint64, now time.Time) (int, error) {
	n := 0
	for _, r := range t.f.reservations {
		if r.RoomID == roomID && r.Live(now) {
			n++
		}
	}
	return n, nil
}

func (t fakeTx) SetRoomStatus(_ context.Context, roomID uint64, status model.RoomStatus) error {
	if rm, ok := t.f.rooms[roomID]; ok && rm.IsActive {
		rm.Status = status
	}
	return nil
}

// reservationView adapts fakeStore to ReservationReader.
type reservationView struct{ f *fakeStore }

func (v reservationView) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	res, ok := v.f.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (v reservationView) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range v.f.all() {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (v reservationView) ListAll(_ context.Context) ([]model.Reservation, error) {
	out := v.f.all()
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(list []model.Reservation) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.After(list[j].StartTime)
		}
		return list[i].ID > list[j].ID
	})
}

// roomView adapts fakeStore to RoomCatalog and LapsedRoomLister.
type roomView struct{ f *fakeStore }

func (v roomView) Create(_ context.Context, rm *model.Room) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	for _, r := range v.f.rooms {
		if r.Name == rm.Name {
			return repository.ErrDuplicate
		}
	}
	v.f.nextID++
	rm.ID = v.f.nextID
	rm.Status = model.RoomAvailable
	rm.IsActive = true
	cp := *rm
	v.f.rooms[rm.ID] = &cp
	return nil
}

func (v roomView) GetByID(_ context.Context, id uint64) (*model.Room, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	rm, ok := v.f.rooms[id]
	if !ok || !rm.IsActive {
		return nil, repository.ErrRoomNotFound
	}
	cp := *rm
	return &cp, nil
}

func (v roomView) ExistsByName(_ context.Context, name string, excludeID uint64) (bool, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	for _, r := range v.f.rooms {
		if r.ID != excludeID && strings.EqualFold(r.Name, strings.TrimSpace(name)) {
			return true, nil
		}
	}
	return false, nil
}

func (v roomView) active() []model.Room {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	var out []model.Room
	for _, r := range v.f.rooms {
		if r.IsActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v roomView) ListActive(_ context.Context, f repository.RoomFilter, page, limit int) ([]model.Room, int64, error) {
	var matched []model.Room
	for _, r := range v.active() {
		if f.Status == nil || r.Status == *f.Status {
			matched = append(matched, r)
		}
	}
	total := int64(len(matched))
	from := (page - 1) * limit
	if from > len(matched) {
		from = len(matched)
	}
	to := from + limit
	if to > len(matched) {
		to = len(matched)
	}
	return append([]model.Room{}, matched[from:to]...), total, nil
}

func (v roomView) Update(_ context.Context, rm *model.Room) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	cur, ok := v.f.rooms[rm.ID]
	if !ok || !cur.IsActive {
		return repository.ErrRoomNotFound
	}
	cur.Name, cur.Capacity, cur.Location, cur.Description = rm.Name, rm.Capacity, rm.Location, rm.Description
	return nil
}

func (v roomView) SetStatus(_ context.Context, id uint64, status model.RoomStatus) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	cur, ok := v.f.rooms[id]
	if !ok || !cur.IsActive {
		return repository.ErrRoomNotFound
	}
	cur.Status = status
	return nil
}

func (v roomView) Deactivate(_ context.Context, id uint64) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	cur, ok := v.f.rooms[id]
	if !ok || !cur.IsActive {
		return repository.ErrRoomNotFound
	}
	cur.IsActive = false
	return nil
}

func (v roomView) FindAvailable(_ context.Context, start, end time.Time, minCapacity *int) ([]model.Room, error) {
	reservations := v.f.all()
	var out []model.Room
	for _, r := range v.active() {
		if r.Status != model.RoomAvailable {
			continue
		}
		if minCapacity != nil && r.Capacity < *minCapacity {
			continue
		}
		busy := false
		for _, res := range reservations {
			if res.RoomID == r.ID && res.Overlaps(start, end) {
				busy = true
				break
			}
		}
		if !busy {
			out = append(out, r)
		}
	}
	return out, nil
}

func (v roomView) ListLapsedOccupied(_ context.Context, now time.Time) ([]uint64, error) {
	reservations := v.f.all()
	var ids []uint64
	for _, r := range v.active() {
		if r.Status != model.RoomOccupied {
			continue
		}
		live := false
		for _, res := range reservations {
			if res.RoomID == r.ID && res.Live(now) {
				live = true
				break
			}
		}
		if !live {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
