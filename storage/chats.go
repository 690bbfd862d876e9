package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

const titleWidth = 100

type Chat struct {
	ID        string
	Title     string
	ModelID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// GenerateChatTitle derives a chat title from the first message: newlines
// folded, trimmed, cut to 100 display cells. Empty input gives "New Chat".
func GenerateChatTitle(firstMessage string) string {
	title := strings.ReplaceAll(firstMessage, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.TrimSpace(title)
	if title == "" {
		return "New Chat"
	}
	return runewidth.Truncate(title, titleWidth, "")
}

// EnsureChat returns chatID when that chat exists (recording modelID on it),
// otherwise creates a chat titled from firstMessage and returns its new id.
func (s *Store) EnsureChat(ctx context.Context, chatID, modelID, firstMessage string) (string, error) {
	now := time.Now().UTC()

	if chatID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE chat SET model_id = ?, updated_at = ? WHERE id = ?`,
			modelID, now, chatID)
		if err != nil {
			return "", fmt.Errorf("failed to update chat: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return chatID, nil
		}
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat (id, title, model_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, GenerateChatTitle(firstMessage), modelID, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	return id, nil
}

func (s *Store) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, model_id, created_at, updated_at FROM chat WHERE id = ?`, chatID,
	).Scan(&c.ID, &c.Title, &c.ModelID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return &c, nil
}

// SaveMessage appends a message to an existing chat.
func (s *Store) SaveMessage(ctx context.Context, chatID, role, content string) (*Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	m := &Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return m, nil
}

// Messages returns a chat's messages oldest first.
func (s *Store) Messages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM message WHERE chat_id = ? ORDER BY created_at, rowid`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteChat removes a chat and its messages.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat WHERE id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	return tx.Commit()
}
