package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/gateway"
)

// Cipher encrypts message contents at rest. *auth.Encryptor implements it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service stores conversations and meal analyses.
type Service struct {
	repo        Repository
	cache       *Cache
	cipher      Cipher
	maxMessages int
}

// NewService creates a history service. cache may be nil.
func NewService(repo Repository, cache *Cache, cipher Cipher, maxMessages int) *Service {
	if maxMessages <= 0 {
		maxMessages = 100
	}
	return &Service{repo: repo, cache: cache, cipher: cipher, maxMessages: maxMessages}
}

// Chat returns the decrypted conversation, or the greeting when there is none.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	stored, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return greetingConversation(), nil
	}

	out := make([]Message, 0, len(stored))
	for _, m := range stored {
		plain, err := s.cipher.Decrypt(m.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypting message: %w", err)
		}
		out = append(out, Message{Role: m.Role, Content: plain})
	}
	return out, nil
}

// ResetChat replaces the conversation with the greeting.
func (s *Service) ResetChat(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	msgs := greetingConversation()
	if err := s.save(ctx, userID, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// RecordChat saves the conversation the client sent plus the reply. System
// turns are not kept. Only the newest maxMessages survive.
func (s *Service) RecordChat(ctx context.Context, userID uuid.UUID, messages []gateway.Message, reply string) error {
	msgs := make([]Message, 0, len(messages)+1)
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, Message{Role: "assistant", Content: reply})

	if len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	return s.save(ctx, userID, msgs)
}

// RecordAnalysis saves a successful meal analysis.
func (s *Service) RecordAnalysis(ctx context.Context, userID uuid.UUID, info *gateway.NutritionInfo) error {
	a := &Analysis{
		UserID:      userID,
		FoodName:    info.FoodName,
		Calories:    info.Calories,
		Protein:     info.Protein,
		Carbs:       info.Carbs,
		Fat:         info.Fat,
		Fiber:       info.Fiber,
		Description: info.Description,
		Suggestions: info.Suggestions,
	}
	return s.repo.CreateAnalysis(ctx, a)
}

// Analyses returns one page of the user's analyses, newest first.
func (s *Service) Analyses(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Analysis, int64, error) {
	items, err := s.repo.ListAnalyses(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.CountAnalyses(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []Analysis{}
	}
	return items, count, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	if s.cache != nil {
		msgs, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			slog.Warn("history: cache read failed", "user_id", userID, "error", err)
		} else if ok {
			return msgs, nil
		}
	}

	msgs, err := s.repo.GetChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(msgs) > 0 {
		if err := s.cache.Set(ctx, userID, msgs); err != nil {
			slog.Warn("history: cache fill failed", "user_id", userID, "error", err)
		}
	}
	return msgs, nil
}

func (s *Service) save(ctx context.Context, userID uuid.UUID, plain []Message) error {
	stored := make([]Message, 0, len(plain))
	for _, m := range plain {
		ct, err := s.cipher.Encrypt(m.Content)
		if err != nil {
			return fmt.Errorf("encrypting message: %w", err)
		}
		stored = append(stored, Message{Role: m.Role, Content: ct})
	}

	if err := s.repo.SaveChat(ctx, userID, stored); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, stored); err != nil {
			slog.Warn("history: cache write failed, dropping entry", "user_id", userID, "error", err)
			_ = s.cache.Clear(ctx, userID)
		}
	}
	return nil
}
