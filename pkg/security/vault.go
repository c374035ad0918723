package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/bluehorizon/skydesk/pkg/config"
)

const (
	vaultScheme = "skyvault"
	vaultVer    = 1
	keyLen      = 32
	nonceLen    = 24
)

var (
	// ErrInvalidSeal signals a malformed sealed string.
	ErrInvalidSeal = errors.New("invalid sealed payload")
	// ErrWrongPassphrase signals that the payload did not authenticate.
	ErrWrongPassphrase = errors.New("sealed payload could not be opened")
)

// ArgonParams captures the Argon2id parameters embedded into each sealed string.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
}

// Vault seals small secrets with a key derived from a passphrase.
// Every Seal uses a fresh salt and nonce.
type Vault struct {
	passphrase []byte
	params     ArgonParams
}

func NewVault(passphrase string, cfg config.SessionConfig) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	return &Vault{passphrase: []byte(passphrase), params: paramsFromConfig(cfg)}, nil
}

// Seal returns "$skyvault$v=1$m=..,t=..,p=..$salt$box" where box is the
// nonce followed by the secretbox output.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, v.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	key := v.derive(salt, v.params)
	box := secretbox.Seal(nonce[:], plaintext, &nonce, key)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		vaultScheme, vaultVer,
		v.params.Memory, v.params.Time, v.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(box),
	), nil
}

// Open reverses Seal using the parameters recorded in the sealed string.
func (v *Vault) Open(sealed string) ([]byte, error) {
	params, salt, box, err := decodeSeal(strings.TrimSpace(sealed))
	if err != nil {
		return nil, err
	}
	if len(box) < nonceLen+secretbox.Overhead {
		return nil, ErrInvalidSeal
	}
	var nonce [nonceLen]byte
	copy(nonce[:], box[:nonceLen])

	out, ok := secretbox.Open(nil, box[nonceLen:], &nonce, v.derive(salt, params))
	if !ok {
		return nil, ErrWrongPassphrase
	}
	return out, nil
}

func (v *Vault) derive(salt []byte, params ArgonParams) *[keyLen]byte {
	var key [keyLen]byte
	copy(key[:], argon2.IDKey(v.passphrase, salt, params.Time, params.Memory, params.Parallelism, keyLen))
	return &key
}

func paramsFromConfig(cfg config.SessionConfig) ArgonParams {
	threads := clampInt(cfg.ArgonParallelism, 1, 255)
	return ArgonParams{
		Memory:      clampUint32(cfg.ArgonMemoryKB, 8, 512*1024),
		Time:        clampUint32(cfg.ArgonTime, 1, 10),
		Parallelism: uint8(threads),
		SaltLen:     clampUint32(cfg.ArgonSaltLen, 8, 64),
	}
}

func decodeSeal(encoded string) (ArgonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != vaultScheme || parts[2] != "v="+strconv.Itoa(vaultVer) {
		return ArgonParams{}, nil, nil, ErrInvalidSeal
	}

	var params ArgonParams
	for _, token := range strings.Split(parts[3], ",") {
		keyValue := strings.SplitN(token, "=", 2)
		if len(keyValue) != 2 {
			return ArgonParams{}, nil, nil, ErrInvalidSeal
		}
		key, value := keyValue[0], keyValue[1]
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return ArgonParams{}, nil, nil, ErrInvalidSeal
			}
			params.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return ArgonParams{}, nil, nil, ErrInvalidSeal
			}
			params.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return ArgonParams{}, nil, nil, ErrInvalidSeal
			}
			params.Parallelism = uint8(v)
		}
	}
	if params.Time == 0 || params.Parallelism == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidSeal
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ArgonParams{}, nil, nil, ErrInvalidSeal
	}
	box, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ArgonParams{}, nil, nil, ErrInvalidSeal
	}
	params.SaltLen = uint32(len(salt))

	return params, salt, box, nil
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampUint32(value, min, max int) uint32 {
	return uint32(clampInt(value, min, max))
}
