package contact

import (
	"time"

	"github.com/uptrace/bun"
)

// Contact is the persisted contact record. Nickname, phone and email are
// unique at the database level.
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Nickname  string    `bun:"nickname,type:varchar(50),notnull,unique"`
	Phone     string    `bun:"phone,type:varchar(256),notnull,unique"`
	Email     string    `bun:"email,type:varchar(100),notnull,unique"`
	Message   string    `bun:"message,type:text,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// CreateRequest is the body of POST /api/save_user_info.
type CreateRequest struct {
	Nickname string `json:"nickname" validate:"required,notblank,max=50"`
	Phone    string `json:"phone" validate:"required,notblank,phone11"`
	Email    string `json:"email" validate:"required,notblank,contact_email,max=100"`
	Message  string `json:"message" validate:"required,notblank"`
}

type CreateResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// Response is the read model. Phone is left out when the phone policy
// stores digests only.
type Response struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"nickname"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactCreatedEvent is published after a record is committed.
type ContactCreatedEvent struct {
	UserID    int64     `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
