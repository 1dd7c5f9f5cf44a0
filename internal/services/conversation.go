package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/lumachat/luma-backend/internal/data/stores"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type TurnInput struct {
	SessionID   string
	UserID      string
	TenantID    string
	Channel     conversation.Channel
	Title       string
	UserText    string
	UIMessageID string
	Metadata    map[string]any
	// OnDelta, when set, receives streamed text increments from the generator.
	OnDelta func(delta string)
}

type TurnResult struct {
	Session     *conversation.Session
	UserMessage *conversation.Message
	// AssistantMessage is nil when the generation was aborted or produced no text.
	AssistantMessage *conversation.Message
	Aborted          bool
}

type ConversationService interface {
	// RunTurn executes one full user turn: session resolution, durable user
	// message append, generation, and the conditional assistant append.
	RunTurn(dbc dbctx.Context, in TurnInput) (*TurnResult, error)

	GetSession(dbc dbctx.Context, sessionID string) (*conversation.Session, error)
	ListSessions(dbc dbctx.Context, userID string, limit int) ([]*conversation.Session, error)
	ListMessages(dbc dbctx.Context, sessionID string) ([]*conversation.Message, error)

	// DeleteSession soft-deletes the session and drops its cached entries.
	DeleteSession(dbc dbctx.Context, sessionID string) error
}

type conversationService struct {
	log      *logger.Logger
	sessions stores.SessionStore
	messages stores.MessageStore
	gen      Generator
	now      func() time.Time
}

func NewConversationService(log *logger.Logger, sessions stores.SessionStore, messages stores.MessageStore, gen Generator) ConversationService {
	return &conversationService{
		log:      log,
		sessions: sessions,
		messages: messages,
		gen:      gen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// turnState carries the intermediate products of one turn between steps.
type turnState struct {
	in  TurnInput
	now time.Time

	session   *conversation.Session
	history   []*conversation.Message
	nextIndex int

	userMessage      *conversation.Message
	completion       Completion
	assistantMessage *conversation.Message
	aborted          bool
}

type turnStep struct {
	name string
	run  func(dbc dbctx.Context, st *turnState) error
}

func (s *conversationService) RunTurn(dbc dbctx.Context, in TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("%w: missing session_id", apperrs.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.UserText) == "" {
		return nil, fmt.Errorf("%w: empty user text", apperrs.ErrInvalidArgument)
	}

	st := &turnState{in: in, now: s.now()}
	steps := []turnStep{
		{name: "resolve_session", run: s.resolveSession},
		{name: "append_user_message", run: s.appendUserMessage},
		{name: "generate", run: s.generate},
		{name: "append_assistant_message", run: s.appendAssistantMessage},
	}

	for _, step := range steps {
		if err := step.run(dbc, st); err != nil {
			s.log.Error("turn step failed",
				"step", step.name,
				"session_id", in.SessionID,
				"error", err.Error(),
			)
			return st.result(), fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return st.result(), nil
}

func (st *turnState) result() *TurnResult {
	if st.userMessage == nil {
		return nil
	}
	return &TurnResult{
		Session:          st.session,
		UserMessage:      st.userMessage,
		AssistantMessage: st.assistantMessage,
		Aborted:          st.aborted,
	}
}

// resolveSession loads the session or creates it on first contact, and bumps
// its activity timestamp either way.
func (s *conversationService) resolveSession(dbc dbctx.Context, st *turnState) error {
	sess, err := s.sessions.GetByID(dbc, st.in.SessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		channel := st.in.Channel
		if !channel.Valid() {
			channel = conversation.DefaultChannel
		}
		sess = &conversation.Session{
			SessionID:     st.in.SessionID,
			UserID:        st.in.UserID,
			TenantID:      st.in.TenantID,
			Channel:       channel,
			Title:         st.in.Title,
			StartedAt:     st.now,
			LastMessageAt: st.now,
		}
		if len(st.in.Metadata) > 0 {
			sess.Metadata = datatypes.JSONMap(st.in.Metadata)
		}
	} else {
		sess = sess.Touch(st.now)
	}
	if err := s.sessions.Upsert(dbc, sess); err != nil {
		return err
	}
	st.session = sess

	history, err := s.messages.ListBySession(dbc, sess.SessionID)
	if err != nil {
		return err
	}
	st.history = history

	next, err := s.messages.NextIndex(dbc, sess.SessionID)
	if err != nil {
		return err
	}
	st.nextIndex = next
	return nil
}

func (s *conversationService) appendUserMessage(dbc dbctx.Context, st *turnState) error {
	msg := &conversation.Message{
		SessionID:   st.session.SessionID,
		Role:        conversation.RoleUser,
		Content:     st.in.UserText,
		Index:       st.nextIndex,
		UIMessageID: st.in.UIMessageID,
		CreatedAt:   st.now,
		UpdatedAt:   st.now,
	}
	msg.ID = conversation.MessageID(msg.SessionID, msg.Index)
	if len(st.in.Metadata) > 0 {
		msg.Metadata = datatypes.JSONMap(st.in.Metadata)
	}

	appended, err := s.appendWithRetry(dbc, msg)
	if err != nil {
		return err
	}
	st.userMessage = appended
	st.nextIndex = appended.Index + 1
	st.history = append(st.history, appended)
	return nil
}

func (s *conversationService) generate(dbc dbctx.Context, st *turnState) error {
	completion, err := s.gen.Generate(dbc.Ctx, st.history, st.in.OnDelta)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || dbc.Ctx.Err() != nil {
			s.log.Info("generation cancelled",
				"session_id", st.session.SessionID,
				"next_index", st.nextIndex,
			)
			st.aborted = true
			return nil
		}
		return err
	}
	st.completion = completion
	st.aborted = completion.Aborted
	return nil
}

// appendAssistantMessage commits the completion when there is one. A turn with
// an aborted or empty completion ends here with only the user message durable,
// and an append failure at this point is deliberately non-fatal: the user
// message already landed and the next turn recounts the index from persistence.
func (s *conversationService) appendAssistantMessage(dbc dbctx.Context, st *turnState) error {
	if st.aborted || strings.TrimSpace(st.completion.Text) == "" {
		return nil
	}

	msg := &conversation.Message{
		SessionID:     st.session.SessionID,
		Role:          conversation.RoleAssistant,
		Content:       st.completion.Text,
		Index:         st.nextIndex,
		ModelSnapshot: st.completion.Model,
		CreatedAt:     st.now,
		UpdatedAt:     st.now,
	}
	msg.ID = conversation.MessageID(msg.SessionID, msg.Index)

	appended, err := s.appendWithRetry(dbc, msg)
	if err != nil {
		s.log.Error("assistant message append failed",
			"session_id", st.session.SessionID,
			"msg_index", msg.Index,
			"error", err.Error(),
		)
		return nil
	}
	st.assistantMessage = appended
	return nil
}

// appendWithRetry appends the message and, on an index collision with a
// concurrent writer, recomputes the index from persistence and tries exactly
// once more.
func (s *conversationService) appendWithRetry(dbc dbctx.Context, msg *conversation.Message) (*conversation.Message, error) {
	err := s.messages.Append(dbc, msg)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, apperrs.ErrConflict) {
		return nil, err
	}

	next, nerr := s.messages.NextIndex(dbc, msg.SessionID)
	if nerr != nil {
		return nil, nerr
	}
	s.log.Warn("message index conflict, retrying",
		"session_id", msg.SessionID,
		"taken_index", msg.Index,
		"retry_index", next,
	)
	msg.Index = next
	msg.ID = conversation.MessageID(msg.SessionID, msg.Index)
	if err := s.messages.Append(dbc, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *conversationService) GetSession(dbc dbctx.Context, sessionID string) (*conversation.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: missing session_id", apperrs.ErrInvalidArgument)
	}
	return s.sessions.GetByID(dbc, sessionID)
}

func (s *conversationService) ListSessions(dbc dbctx.Context, userID string, limit int) ([]*conversation.Session, error) {
	return s.sessions.ListRecent(dbc, userID, limit)
}

func (s *conversationService) ListMessages(dbc dbctx.Context, sessionID string) ([]*conversation.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: missing session_id", apperrs.ErrInvalidArgument)
	}
	return s.messages.ListBySession(dbc, sessionID)
}

func (s *conversationService) DeleteSession(dbc dbctx.Context, sessionID string) error {
	sess, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("%w: session %s", apperrs.ErrNotFound, sessionID)
	}
	deleted := *sess
	deleted.Deleted = true
	deleted.UpdatedAt = s.now()
	return s.sessions.Upsert(dbc, &deleted)
}
