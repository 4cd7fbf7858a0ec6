package contact

import (
	"context"
	"errors"
	"testing"
	"time"

	"contact-service/internal/logger"
	"contact-service/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// mocks
// ---------------------------------------------------------------------------

type mockRepository struct {
	createFunc        func(ctx context.Context, c *Contact) (int64, error)
	getByIDFunc       func(ctx context.Context, id int64) (*Contact, error)
	findConflictsFunc func(ctx context.Context, nickname, phone, email string) ([]Contact, error)
	findCalls         int
}

func (m *mockRepository) Create(ctx context.Context, c *Contact) (int64, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, c)
	}
	c.ID = 1
	c.CreatedAt = time.Now().UTC()
	return c.ID, nil
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*Contact, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *mockRepository) FindConflicts(ctx context.Context, nickname, phone, email string) ([]Contact, error) {
	m.findCalls++
	if m.findConflictsFunc != nil {
		return m.findConflictsFunc(ctx, nickname, phone, email)
	}
	return nil, nil
}

type sentMessage struct {
	key   string
	value interface{}
}

type mockProducer struct {
	sent []sentMessage
	err  error
}

func (m *mockProducer) SendMessage(_ context.Context, key string, value interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{key: key, value: value})
	return nil
}

func (m *mockProducer) Close() error { return nil }

func newTestService(repo Repository, phones PhonePolicy, opts ...ServiceOption) Service {
	if phones == nil {
		phones, _ = NewPhonePolicy(PhonePlaintext, "")
	}
	opts = append([]ServiceOption{WithMetrics(metrics.NewMock())}, opts...)
	return NewService(repo, NewValidator(), phones, logger.Discard(), opts...)
}

// ---------------------------------------------------------------------------
// CreateContact
// ---------------------------------------------------------------------------

func TestService_CreateContact_Success(t *testing.T) {
	var saved *Contact
	repo := &mockRepository{
		createFunc: func(ctx context.Context, c *Contact) (int64, error) {
			saved = c
			c.ID = 7
			c.CreatedAt = time.Now().UTC()
			return c.ID, nil
		},
	}
	producer := &mockProducer{}
	svc := newTestService(repo, nil, WithProducer(producer))

	got, err := svc.CreateContact(context.Background(), validRequest())
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "alice", saved.Nickname)
	assert.Equal(t, "13800001111", saved.Phone)
	assert.Equal(t, 1, repo.findCalls)

	require.Len(t, producer.sent, 1)
	assert.Equal(t, "7", producer.sent[0].key)
	event, ok := producer.sent[0].value.(ContactCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(7), event.UserID)
	assert.Equal(t, "alice", event.Nickname)
}

func TestService_CreateContact_ValidationSkipsStore(t *testing.T) {
	repo := &mockRepository{
		createFunc: func(ctx context.Context, c *Contact) (int64, error) {
			t.Fatal("Create must not be called")
			return 0, nil
		},
	}
	svc := newTestService(repo, nil)

	req := validRequest()
	req.Message = ""
	_, err := svc.CreateContact(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "message", verr.Field)
	assert.Equal(t, 0, repo.findCalls)
}

func TestService_CreateContact_ConflictPriority(t *testing.T) {
	req := validRequest()

	tests := []struct {
		name     string
		existing []Contact
		want     string
	}{
		{
			name:     "nickname only",
			existing: []Contact{{Nickname: req.Nickname, Phone: "x", Email: "x"}},
			want:     "nickname",
		},
		{
			name: "email record returned before nickname record",
			existing: []Contact{
				{Nickname: "other", Phone: "y", Email: req.Email},
				{Nickname: req.Nickname, Phone: "z", Email: "z"},
			},
			want: "nickname",
		},
		{
			name: "phone beats email",
			existing: []Contact{
				{Nickname: "a", Phone: "p", Email: req.Email},
				{Nickname: "b", Phone: req.Phone, Email: "e"},
			},
			want: "phone",
		},
		{
			name:     "email",
			existing: []Contact{{Nickname: "a", Phone: "p", Email: req.Email}},
			want:     "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				findConflictsFunc: func(ctx context.Context, nickname, phone, email string) ([]Contact, error) {
					return tt.existing, nil
				},
				createFunc: func(ctx context.Context, c *Contact) (int64, error) {
					t.Fatal("Create must not be called")
					return 0, nil
				},
			}
			svc := newTestService(repo, nil)

			_, err := svc.CreateContact(context.Background(), req)
			assert.ErrorIs(t, err, ErrConflict)

			var cerr *ConflictError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.want, cerr.Field)
			assert.Equal(t, tt.want+" already exists", cerr.Error())
		})
	}
}

func TestService_CreateContact_RaceMapsToConflict(t *testing.T) {
	t.Run("driver names the column", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, c *Contact) (int64, error) {
				return 0, &duplicateError{Field: "email", Err: errors.New("unique")}
			},
		}
		svc := newTestService(repo, nil)

		_, err := svc.CreateContact(context.Background(), validRequest())
		var cerr *ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "email", cerr.Field)
	})

	t.Run("column unknown, guard re-run", func(t *testing.T) {
		req := validRequest()
		repo := &mockRepository{
			createFunc: func(ctx context.Context, c *Contact) (int64, error) {
				return 0, &duplicateError{Err: errors.New("unique")}
			},
		}
		repo.findConflictsFunc = func(ctx context.Context, nickname, phone, email string) ([]Contact, error) {
			if repo.findCalls == 1 {
				return nil, nil
			}
			return []Contact{{Nickname: "winner", Phone: req.Phone, Email: "w@example.com"}}, nil
		}
		svc := newTestService(repo, nil)

		_, err := svc.CreateContact(context.Background(), req)
		var cerr *ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "phone", cerr.Field)
		assert.Equal(t, 2, repo.findCalls)
	})
}

func TestService_CreateContact_StoreError(t *testing.T) {
	repo := &mockRepository{
		createFunc: func(ctx context.Context, c *Contact) (int64, error) {
			return 0, &StoreError{Op: "insert", Err: errors.New("disk I/O error")}
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.CreateContact(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrStore)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestService_CreateContact_PublishFailureIgnored(t *testing.T) {
	svc := newTestService(&mockRepository{}, nil, WithProducer(&mockProducer{err: errors.New("nats down")}))

	got, err := svc.CreateContact(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
}

func TestService_CreateContact_HashedPhone(t *testing.T) {
	phones, err := NewPhonePolicy(PhoneHash, "pepper")
	require.NoError(t, err)

	var lookedUp string
	repo := &mockRepository{
		findConflictsFunc: func(ctx context.Context, nickname, phone, email string) ([]Contact, error) {
			lookedUp = phone
			return nil, nil
		},
	}
	svc := newTestService(repo, phones)

	got, err := svc.CreateContact(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, phones.Encode("13800001111"), got.Phone)
	assert.Equal(t, got.Phone, lookedUp, "guard compares the stored form")
	assert.False(t, svc.RevealsPhone())
}

// ---------------------------------------------------------------------------
// GetContactByID
// ---------------------------------------------------------------------------

func TestService_GetContactByID(t *testing.T) {
	want := &Contact{ID: 3, Nickname: "alice"}
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id int64) (*Contact, error) {
			if id == 3 {
				return want, nil
			}
			return nil, ErrNotFound
		},
	}
	svc := newTestService(repo, nil)

	got, err := svc.GetContactByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetContactByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetContactByID(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
