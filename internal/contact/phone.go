package contact

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	PhonePlaintext = "plaintext"
	PhoneHash      = "hash"
)

// PhonePolicy decides how phone numbers are stored and whether they are
// returned on read.
type PhonePolicy interface {
	Encode(phone string) string
	Reveal() bool
}

// NewPhonePolicy builds the policy named by mode.
func NewPhonePolicy(mode, key string) (PhonePolicy, error) {
	switch mode {
	case PhonePlaintext, "":
		return plaintextPhone{}, nil
	case PhoneHash:
		return newHashedPhone([]byte(key))
	default:
		return nil, fmt.Errorf("unsupported phone policy %q", mode)
	}
}

type plaintextPhone struct{}

func (plaintextPhone) Encode(phone string) string { return phone }

func (plaintextPhone) Reveal() bool { return true }

// hashedPhone stores a keyed BLAKE2b-256 digest. It is deterministic so equal
// phones collide on the unique index.
type hashedPhone struct {
	key []byte
}

func newHashedPhone(key []byte) (*hashedPhone, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("phone hash key must be 1..%d bytes", blake2b.Size)
	}
	return &hashedPhone{key: key}, nil
}

func (h *hashedPhone) Encode(phone string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is checked in newHashedPhone
		panic(err)
	}
	mac.Write([]byte(phone))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *hashedPhone) Reveal() bool { return false }
