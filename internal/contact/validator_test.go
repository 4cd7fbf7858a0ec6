package contact

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() CreateRequest {
	return CreateRequest{
		Nickname: "alice",
		Phone:    "13800001111",
		Email:    "alice@example.com",
		Message:  "hello there",
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		mutate    func(r *CreateRequest)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(r *CreateRequest) {}},
		{name: "short email accepted", mutate: func(r *CreateRequest) { r.Email = "a@b.co" }},
		{
			name:      "missing nickname",
			mutate:    func(r *CreateRequest) { r.Nickname = "" },
			wantField: "nickname",
			wantMsg:   "nickname is required",
		},
		{
			name:      "blank message",
			mutate:    func(r *CreateRequest) { r.Message = "   " },
			wantField: "message",
			wantMsg:   "message is required",
		},
		{
			name:      "missing message",
			mutate:    func(r *CreateRequest) { r.Message = "" },
			wantField: "message",
			wantMsg:   "message is required",
		},
		{
			name:      "bad email",
			mutate:    func(r *CreateRequest) { r.Email = "not-an-email" },
			wantField: "email",
			wantMsg:   "invalid email format",
		},
		{
			name:      "email without tld",
			mutate:    func(r *CreateRequest) { r.Email = "a@b.c" },
			wantField: "email",
			wantMsg:   "invalid email format",
		},
		{
			name:      "short phone",
			mutate:    func(r *CreateRequest) { r.Phone = "12345" },
			wantField: "phone",
			wantMsg:   "invalid phone format",
		},
		{
			name:      "phone with letters",
			mutate:    func(r *CreateRequest) { r.Phone = "1380000111a" },
			wantField: "phone",
			wantMsg:   "invalid phone format",
		},
		{
			name:      "nickname too long",
			mutate:    func(r *CreateRequest) { r.Nickname = strings.Repeat("n", 51) },
			wantField: "nickname",
			wantMsg:   "nickname is too long",
		},
		{
			name: "missing wins over malformed",
			mutate: func(r *CreateRequest) {
				r.Email = "not-an-email"
				r.Message = ""
			},
			wantField: "message",
			wantMsg:   "message is required",
		},
		{
			name: "presence order nickname first",
			mutate: func(r *CreateRequest) {
				r.Nickname = ""
				r.Phone = ""
			},
			wantField: "nickname",
			wantMsg:   "nickname is required",
		},
		{
			name: "email format before phone format",
			mutate: func(r *CreateRequest) {
				r.Phone = "12345"
				r.Email = "nope"
			},
			wantField: "email",
			wantMsg:   "invalid email format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := v.Validate(req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, tt.wantMsg, verr.Error())
		})
	}
}

func TestValidator_LenientPhone(t *testing.T) {
	v := NewValidator(WithStrictPhone(false))

	req := validRequest()
	req.Phone = "12345"
	assert.NoError(t, v.Validate(req))

	req.Phone = ""
	var verr *ValidationError
	require.ErrorAs(t, v.Validate(req), &verr)
	assert.Equal(t, "phone", verr.Field)
}

func TestValidator_Normalize(t *testing.T) {
	t.Run("disabled keeps input", func(t *testing.T) {
		v := NewValidator()
		req := validRequest()
		req.Message = "<b>hi</b> & bye"

		assert.Equal(t, req, v.Normalize(req))
	})

	t.Run("enabled strips markup", func(t *testing.T) {
		v := NewValidator(WithSanitizer(true))
		req := validRequest()
		req.Nickname = "<script>alert(1)</script>bob"
		req.Message = "<b>hi</b>"

		got := v.Normalize(req)
		assert.Equal(t, "bob", got.Nickname)
		assert.Equal(t, "hi", got.Message)
		assert.Equal(t, req.Phone, got.Phone)
		assert.Equal(t, req.Email, got.Email)
	})

	t.Run("enabled keeps ampersands literal", func(t *testing.T) {
		v := NewValidator(WithSanitizer(true))
		req := validRequest()
		req.Message = "Tom & Jerry \"quotes\""

		got := v.Normalize(req)
		assert.Equal(t, "Tom & Jerry \"quotes\"", got.Message)
	})

	t.Run("enabled does not push nickname over the limit", func(t *testing.T) {
		v := NewValidator(WithSanitizer(true))
		req := validRequest()
		req.Nickname = strings.Repeat("a", 47) + "&b"

		got := v.Normalize(req)
		assert.Equal(t, req.Nickname, got.Nickname)
		assert.NoError(t, v.Validate(got))
	})

	t.Run("markup only counts as missing", func(t *testing.T) {
		v := NewValidator(WithSanitizer(true))
		req := validRequest()
		req.Message = "<img src=x onerror=alert(1)>"

		err := v.Validate(v.Normalize(req))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "message", verr.Field)
		assert.Equal(t, "message is required", verr.Reason)
	})
}

func TestMustRegister_PanicsOnBadTag(t *testing.T) {
	assert.Panics(t, func() {
		mustRegister(validator.New(), "", func(validator.FieldLevel) bool { return true })
	})
	assert.NotPanics(t, func() { NewValidator(WithStrictPhone(false), WithSanitizer(true)) })
}
