// Package store owns durable per-user profiles and conversation history.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/metrics"
	"github.com/xiaoyue/companion/internal/model/profile"
)

// SchemaVersion tags the persisted document layout.
const SchemaVersion = 1

// DefaultMaxHistory bounds the conversation history kept per user.
const DefaultMaxHistory = 50

// Document is the unit of persistence: the whole profile collection,
// rewritten on every mutation.
type Document struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Profiles      []*profile.UserProfile `json:"profiles"`
}

// Backend loads and saves the full document. Implementations: JSON file,
// sqlite.
type Backend interface {
	Load() (*Document, error)
	Save(*Document) error
}

// Config tunes the store.
type Config struct {
	MaxHistory int
}

// Stats aggregates the store contents for the read-only stats endpoint.
type Stats struct {
	TotalUsers    int `json:"totalUsers"`
	TotalMessages int `json:"totalMessages"`
}

// Service is the process-wide profile store. The in-memory cache is the
// source of truth; every mutation writes through to the backend, and a
// failed write is logged and swallowed so the turn can continue.
//
// Mutations for one user are serialized by a per-user lock, keeping the
// invariant that history reflects every appended message in append order
// even under concurrent turns for the same user.
type Service struct {
	mu    sync.RWMutex
	cache map[string]*profile.UserProfile
	locks map[string]*sync.Mutex

	saveMu  sync.Mutex
	backend Backend

	maxHistory int
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// NewService loads the persisted document and bootstraps the store. A
// missing or unreadable document starts the store empty and writes out an
// empty document instead of failing startup.
func NewService(backend Backend, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Service {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	svc := &Service{
		cache:      make(map[string]*profile.UserProfile),
		locks:      make(map[string]*sync.Mutex),
		backend:    backend,
		maxHistory: maxHistory,
		log:        log.With().Str("component", "store").Logger(),
		metrics:    m,
	}

	doc, err := backend.Load()
	if err != nil {
		svc.log.Warn().Err(err).Msg("无法读取持久化档案，以空存储启动")
		svc.persist()
		return svc
	}

	for _, p := range doc.Profiles {
		svc.cache[p.UserID] = p
	}
	svc.log.Info().Int("profiles", len(doc.Profiles)).Msg("用户档案已加载")
	return svc
}

// GetProfile returns the profile for userID, creating and persisting the
// default profile on first access. It never fails with "not found".
func (s *Service) GetProfile(_ context.Context, userID string) *profile.UserProfile {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, created := s.loadOrCreate(userID)
	if created {
		s.persist()
	}
	return copyProfile(p)
}

// AppendMessage appends one message to the user's history, truncating the
// oldest entries past the bound, then writes through.
func (s *Service) AppendMessage(_ context.Context, userID string, message profile.Message) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, _ := s.loadOrCreate(userID)

	s.mu.Lock()
	p.ConversationHistory = append(p.ConversationHistory, message)
	if overflow := len(p.ConversationHistory) - s.maxHistory; overflow > 0 {
		p.ConversationHistory = append(p.ConversationHistory[:0:0], p.ConversationHistory[overflow:]...)
	}
	p.UpdatedAt = message.Timestamp
	s.mu.Unlock()

	s.persist()
}

// UpdatePreferences shallow-merges patch into the stored preferences.
// Fields absent from patch keep their current value.
func (s *Service) UpdatePreferences(_ context.Context, userID string, patch profile.Preferences) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, _ := s.loadOrCreate(userID)

	s.mu.Lock()
	p.Preferences = p.Preferences.Merge(patch)
	p.UpdatedAt = nowMillis()
	s.mu.Unlock()

	s.persist()
	s.log.Info().Str("userId", userID).Msg("用户偏好已更新")
}

// GetHistory returns the most recent limit messages, oldest first. Pure
// read; a limit past the history length returns the whole history.
func (s *Service) GetHistory(_ context.Context, userID string, limit int) []profile.Message {
	lock := s.userLock(userID)
	lock.Lock()
	p, created := s.loadOrCreate(userID)
	if created {
		s.persist()
	}
	lock.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := p.ConversationHistory
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	copied := make([]profile.Message, len(history))
	copy(copied, history)
	return copied
}

// ClearHistory empties the user's conversation history.
func (s *Service) ClearHistory(_ context.Context, userID string) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, _ := s.loadOrCreate(userID)

	s.mu.Lock()
	p.ConversationHistory = p.ConversationHistory[:0]
	p.UpdatedAt = nowMillis()
	s.mu.Unlock()

	s.persist()
	s.log.Info().Str("userId", userID).Msg("用户历史已清空")
}

// Stats reports the aggregate user and message counts.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalUsers: len(s.cache)}
	for _, p := range s.cache {
		stats.TotalMessages += len(p.ConversationHistory)
	}
	return stats
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func (s *Service) loadOrCreate(userID string) (*profile.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.cache[userID]; ok {
		return p, false
	}

	p := profile.NewUserProfile(userID)
	s.cache[userID] = p
	s.log.Info().Str("userId", userID).Msg("创建新的用户档案")
	return p, true
}

// persist serializes the whole collection and writes it out. A failure is
// logged and counted but never raised; the cache stays authoritative until
// the next successful write. The snapshot is taken under saveMu so writes
// reach the backend in snapshot order.
func (s *Service) persist() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	doc := &Document{
		SchemaVersion: SchemaVersion,
		Profiles:      make([]*profile.UserProfile, 0, len(s.cache)),
	}
	for _, p := range s.cache {
		doc.Profiles = append(doc.Profiles, copyProfile(p))
	}
	s.mu.RUnlock()

	sort.Slice(doc.Profiles, func(i, j int) bool {
		return doc.Profiles[i].UserID < doc.Profiles[j].UserID
	})

	if err := s.backend.Save(doc); err != nil {
		s.log.Error().Err(err).Msg("档案持久化失败，内存状态保持有效")
		if s.metrics != nil {
			s.metrics.PersistenceFailuresTotal.Inc()
		}
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func copyProfile(p *profile.UserProfile) *profile.UserProfile {
	copied := *p
	copied.ConversationHistory = make([]profile.Message, len(p.ConversationHistory))
	copy(copied.ConversationHistory, p.ConversationHistory)
	if p.Preferences.FavoriteTools != nil {
		copied.Preferences.FavoriteTools = append([]string(nil), p.Preferences.FavoriteTools...)
	}
	return &copied
}
