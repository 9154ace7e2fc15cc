package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/cryptox"
	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

// MemoryStore keeps everything in process memory. It is meant for tests and
// throwaway servers.
type MemoryStore struct {
	mu             sync.RWMutex
	lastTransfer   int32
	lastCredential int32
	transfers      map[int32]*models.TransferRecord
	byName         map[string]int32
	credentials    map[string]*models.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transfers:   make(map[int32]*models.TransferRecord),
		byName:      make(map[string]int32),
		credentials: make(map[string]*models.Credential),
	}
}

func (s *MemoryStore) FindByFilename(_ context.Context, name string) (*models.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	rec := *s.transfers[id]
	return &rec, nil
}

func (s *MemoryStore) Create(_ context.Context, rec *models.TransferRecord) (*models.TransferRecord, error) {
	if rec.CurrentPacket > rec.TotalPackets {
		return nil, fmt.Errorf("create %q: current packet %d beyond total %d", rec.Filename, rec.CurrentPacket, rec.TotalPackets)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[rec.Filename]; ok {
		return nil, common.ErrorAlreadyExists
	}
	s.lastTransfer++
	rec.ID = s.lastTransfer
	rec.CreatedAt = time.Now().UTC()

	stored := *rec
	s.transfers[rec.ID] = &stored
	s.byName[rec.Filename] = rec.ID
	return rec, nil
}

func (s *MemoryStore) IncrementCurrentPacket(_ context.Context, id int32) (*models.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.transfers[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if rec.CurrentPacket >= rec.TotalPackets {
		return nil, common.ErrorProgressOverflow
	}
	rec.CurrentPacket++
	out := *rec
	return &out, nil
}

func (s *MemoryStore) FindCredentialByToken(_ context.Context, token string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[cryptox.HashToken(token)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) CreateCredential(_ context.Context, token string, notes *string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := cryptox.HashToken(token)
	if _, ok := s.credentials[hash]; ok {
		return nil, common.ErrorAlreadyExists
	}
	s.lastCredential++
	c := &models.Credential{ID: s.lastCredential, TokenHash: hash, Notes: notes, CreatedAt: time.Now().UTC()}
	s.credentials[hash] = c
	out := *c
	return &out, nil
}

func (s *MemoryStore) ListCredentials(_ context.Context) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Credential, 0, len(s.credentials))
	for _, c := range s.credentials {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListTransfers(_ context.Context) ([]models.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TransferRecord, 0, len(s.transfers))
	for _, r := range s.transfers {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
