package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferreirogomes/greenfund/models"
)

// SnapshotStore guarda o snapshot atual da sessão. Leitores recebem o snapshot anterior ou o
// próximo, nunca um montado pela metade.
type SnapshotStore struct {
	current atomic.Pointer[models.SessionSnapshot]
	version atomic.Uint64
	epoch   atomic.Uint64

	subMu       sync.Mutex
	subscribers map[int]chan *models.SessionSnapshot
	nextSub     int
}

// NewSnapshotStore cria um store vazio.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		subscribers: make(map[int]chan *models.SessionSnapshot),
	}
}

// Load retorna o snapshot atual, ou nil antes da primeira publicação.
func (s *SnapshotStore) Load() *models.SessionSnapshot {
	return s.current.Load()
}

// Update monta um novo snapshot a partir do atual e o publica. build não deve modificar prev;
// retornar nil mantém o store inalterado. build pode ser chamado mais de uma vez quando publicações
// concorrem.
func (s *SnapshotStore) Update(build func(prev *models.SessionSnapshot) *models.SessionSnapshot) (*models.SessionSnapshot, bool) {
	return s.update(0, false, build)
}

// UpdateIn é Update vinculado a epoch. Nada é publicado depois que Reset inicia uma época mais
// nova, mesmo quando o Reset ocorre entre build e a troca.
func (s *SnapshotStore) UpdateIn(epoch uint64, build func(prev *models.SessionSnapshot) *models.SessionSnapshot) (*models.SessionSnapshot, bool) {
	return s.update(epoch, true, build)
}

func (s *SnapshotStore) update(epoch uint64, bound bool, build func(prev *models.SessionSnapshot) *models.SessionSnapshot) (*models.SessionSnapshot, bool) {
	stale := func() bool { return bound && s.epoch.Load() != epoch }
	for {
		if stale() {
			return nil, false
		}
		prev := s.current.Load()
		next := build(prev)
		if next == nil {
			return prev, false
		}
		next.Version = s.version.Add(1)
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = time.Now()
		}
		if !s.current.CompareAndSwap(prev, next) {
			continue
		}
		if stale() {
			// Reset rodou depois de build; retira o snapshot, a menos que um mais novo já o tenha substituído.
			s.current.CompareAndSwap(next, nil)
			return nil, false
		}
		s.broadcast(next)
		return next, true
	}
}

// Epoch retorna a época atual. Começa em zero e avança a cada Reset.
func (s *SnapshotStore) Epoch() uint64 {
	return s.epoch.Load()
}

// Reset descarta o snapshot atual e inicia uma nova época, que é retornada.
func (s *SnapshotStore) Reset() uint64 {
	e := s.epoch.Add(1)
	s.current.Store(nil)
	return e
}

// Subscribe retorna um canal que recebe cada snapshot publicado e uma função que cancela a
// inscrição. Inscritos lentos perdem snapshots intermediários em vez de bloquear quem publica.
func (s *SnapshotStore) Subscribe() (<-chan *models.SessionSnapshot, func()) {
	ch := make(chan *models.SessionSnapshot, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

func (s *SnapshotStore) broadcast(snap *models.SessionSnapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Descarta o valor pendente antigo e o substitui pelo mais recente.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
