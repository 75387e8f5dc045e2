package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned when a stored hash is not a usable Argon2id
// PHC string.
var ErrMalformedHash = errors.New("auth: malformed password hash")

// defaultArgon holds the cost used for new hashes. Stored hashes carry
// their own cost, so raising these never invalidates existing accounts.
var defaultArgon = argonCost{
	memoryKiB: 64 * 1024,
	passes:    3,
	lanes:     1,
}

const (
	saltBytes = 16
	keyBytes  = 32
)

var b64 = base64.RawStdEncoding

type argonCost struct {
	memoryKiB uint32
	passes    uint32
	lanes     uint8
}

// phcHash is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phcHash struct {
	cost argonCost
	salt []byte
	key  []byte
}

func (h phcHash) String() string {
	return "$argon2id$v=" + strconv.Itoa(argon2.Version) +
		"$m=" + strconv.FormatUint(uint64(h.cost.memoryKiB), 10) +
		",t=" + strconv.FormatUint(uint64(h.cost.passes), 10) +
		",p=" + strconv.FormatUint(uint64(h.cost.lanes), 10) +
		"$" + b64.EncodeToString(h.salt) +
		"$" + b64.EncodeToString(h.key)
}

func derive(password string, salt []byte, cost argonCost, size int) []byte {
	// #nosec G115 -- size is a key length, far below uint32 range
	return argon2.IDKey([]byte(password), salt, cost.passes, cost.memoryKiB, cost.lanes, uint32(size))
}

// HashPassword returns the Argon2id PHC encoding of password with a fresh
// random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	h := phcHash{
		cost: defaultArgon,
		salt: salt,
		key:  derive(password, salt, defaultArgon, keyBytes),
	}
	return h.String(), nil
}

// VerifyPassword reports whether password matches encoded. A mismatch is
// (false, nil); an unreadable hash is ErrMalformedHash.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := derive(password, h.salt, h.cost, len(h.key))
	return subtle.ConstantTimeCompare(h.key, got) == 1, nil
}

func parsePHC(encoded string) (phcHash, error) {
	var h phcHash

	fields := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(fields) != 5 || fields[0] != "argon2id" {
		return h, ErrMalformedHash
	}
	if fields[1] != "v="+strconv.Itoa(argon2.Version) {
		return h, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[1])
	}

	for _, kv := range strings.Split(fields[2], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return h, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return h, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
		}
		switch name {
		case "m":
			h.cost.memoryKiB = uint32(n)
		case "t":
			h.cost.passes = uint32(n)
		case "p":
			if n > 255 {
				return h, fmt.Errorf("%w: parameter %q", ErrMalformedHash, kv)
			}
			h.cost.lanes = uint8(n)
		default:
			return h, fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}
	if h.cost.memoryKiB == 0 || h.cost.passes == 0 || h.cost.lanes == 0 {
		return h, fmt.Errorf("%w: zero cost parameter", ErrMalformedHash)
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[3]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = b64.DecodeString(fields[4]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return h, nil
}
