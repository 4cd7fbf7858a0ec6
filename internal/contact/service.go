package contact

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"contact-service/internal/metrics"
)

// Producer publishes contact events (NATS or Kafka).
type Producer interface {
	SendMessage(ctx context.Context, key string, value interface{}) error
	Close() error
}

type Service interface {
	CreateContact(ctx context.Context, req CreateRequest) (*Contact, error)
	GetContactByID(ctx context.Context, id int64) (*Contact, error)
	RevealsPhone() bool
}

type service struct {
	repo      Repository
	validator *Validator
	phones    PhonePolicy
	producer  Producer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type ServiceOption func(*service)

func WithProducer(p Producer) ServiceOption {
	return func(s *service) { s.producer = p }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *service) { s.metrics = m }
}

func NewService(repo Repository, validator *Validator, phones PhonePolicy, logger *slog.Logger, opts ...ServiceOption) Service {
	s := &service{
		repo:      repo,
		validator: validator,
		phones:    phones,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) RevealsPhone() bool {
	return s.phones.Reveal()
}

// CreateContact validates req, rejects duplicates and persists the record.
// The unique indexes are the source of truth: a duplicate that slips past
// the pre-insert check still comes back as a *ConflictError.
func (s *service) CreateContact(ctx context.Context, req CreateRequest) (*Contact, error) {
	req = s.validator.Normalize(req)
	if err := s.validator.Validate(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.metrics.RecordContactRejected(ctx, "validation", verr.Field)
		}
		return nil, err
	}

	contact := &Contact{
		Nickname: req.Nickname,
		Phone:    s.phones.Encode(req.Phone),
		Email:    req.Email,
		Message:  req.Message,
	}

	if err := s.checkUnique(ctx, contact); err != nil {
		return nil, err
	}

	if _, err := s.repo.Create(ctx, contact); err != nil {
		var dup *duplicateError
		if !errors.As(err, &dup) {
			return nil, err
		}

		field := dup.Field
		if field == "" {
			// lost a race; ask the store which field collided
			if cerr := s.checkUnique(ctx, contact); cerr != nil {
				return nil, cerr
			}
			field = "record"
		}
		s.metrics.RecordContactRejected(ctx, "conflict", field)
		return nil, &ConflictError{Field: field}
	}

	s.metrics.RecordContactCreated(ctx)
	s.logger.InfoContext(ctx, "contact created", "user_id", contact.ID)
	s.publishCreated(ctx, contact)

	return contact, nil
}

func (s *service) checkUnique(ctx context.Context, contact *Contact) error {
	existing, err := s.repo.FindConflicts(ctx, contact.Nickname, contact.Phone, contact.Email)
	if err != nil {
		return err
	}
	if field := conflictField(existing, contact); field != "" {
		s.metrics.RecordContactRejected(ctx, "conflict", field)
		return &ConflictError{Field: field}
	}
	return nil
}

// conflictField picks the colliding field by priority nickname > phone > email.
func conflictField(existing []Contact, candidate *Contact) string {
	var phone, email bool
	for _, c := range existing {
		if c.Nickname == candidate.Nickname {
			return "nickname"
		}
		phone = phone || c.Phone == candidate.Phone
		email = email || c.Email == candidate.Email
	}
	switch {
	case phone:
		return "phone"
	case email:
		return "email"
	}
	return ""
}

func (s *service) publishCreated(ctx context.Context, contact *Contact) {
	if s.producer == nil {
		return
	}

	event := ContactCreatedEvent{
		UserID:    contact.ID,
		Nickname:  contact.Nickname,
		Email:     contact.Email,
		CreatedAt: contact.CreatedAt,
	}
	if err := s.producer.SendMessage(ctx, strconv.FormatInt(contact.ID, 10), event); err != nil {
		s.metrics.RecordPublishFailure(ctx, "producer")
		s.logger.WarnContext(ctx, "failed to publish contact event", "user_id", contact.ID, "error", err)
	}
}

func (s *service) GetContactByID(ctx context.Context, id int64) (*Contact, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}

	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordContactViewed(ctx)
	return contact, nil
}
