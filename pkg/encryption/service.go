package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	domain "github.com/NeuralTrust/TrustBoundary/pkg/domain/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/scrypt"
)

const (
	MinMasterKeyLength = 32

	saltSize = 32
	ivSize   = 16
	tagSize  = 16
	keySize  = 32

	// HeaderSize is salt, iv and tag ahead of the ciphertext.
	HeaderSize = saltSize + ivSize + tagSize

	minEncryptedLength = 100
)

type kdfParams struct {
	n, r, p int
}

var defaultKDF = kdfParams{n: 16384, r: 8, p: 1}

// Service is an envelope cipher keyed by a master secret. It is the identity
// function when the master key is missing or too short.
type Service struct {
	masterKey []byte
	enabled   bool
	logger    *logrus.Logger
	rand      io.Reader
	kdf       kdfParams
}

type Option func(*Service)

// WithRand replaces the source of salts and IVs.
func WithRand(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}

// WithScryptParams overrides the KDF cost. Payloads only decrypt with the
// parameters they were written with.
func WithScryptParams(n, r, p int) Option {
	return func(s *Service) {
		s.kdf = kdfParams{n: n, r: r, p: p}
	}
}

func NewService(masterKey string, logger *logrus.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Service{
		masterKey: []byte(masterKey),
		enabled:   len(masterKey) >= MinMasterKeyLength,
		logger:    logger,
		rand:      rand.Reader,
		kdf:       defaultKDF,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.enabled {
		s.masterKey = nil
		logger.Warn("encryption master key missing or shorter than 32 characters, encryption disabled")
	}
	return s
}

func (s *Service) Enabled() bool {
	return s.enabled
}

func (s *Service) EncryptString(plaintext string) (string, error) {
	if !s.enabled {
		return plaintext, nil
	}

	header := make([]byte, saltSize+ivSize)
	if _, err := io.ReadFull(s.rand, header); err != nil {
		return "", fmt.Errorf("failed to generate salt and iv: %w", err)
	}
	salt, iv := header[:saltSize], header[saltSize:]

	aead, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	payload := make([]byte, 0, HeaderSize+len(ciphertext))
	payload = append(payload, salt...)
	payload = append(payload, iv...)
	payload = append(payload, tag...)
	payload = append(payload, ciphertext...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecryptString never fails: input that cannot be decrypted is treated as
// legacy plaintext and returned as is.
func (s *Service) DecryptString(value string) string {
	if !s.enabled {
		return value
	}
	plaintext, err := s.decrypt(value)
	if err != nil {
		s.logger.WithError(err).Warn("value could not be decrypted, treating it as plaintext")
		return value
	}
	return plaintext
}

func (s *Service) decrypt(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("%w: decoding payload: %v", domain.ErrDecryptionFailed, err)
	}
	if len(raw) < HeaderSize {
		return "", fmt.Errorf("%w: payload too short", domain.ErrDecryptionFailed)
	}

	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	tag := raw[saltSize+ivSize : HeaderSize]
	ciphertext := raw[HeaderSize:]

	aead, err := s.aead(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: opening ciphertext: %v", domain.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// EncryptJSON marshals v and encrypts it. A nil value encrypts to "".
func (s *Service) EncryptJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value for encryption: %w", err)
	}
	return s.EncryptString(string(data))
}

// DecryptJSON decrypts s and unmarshals it into out. Empty input leaves out
// untouched.
func (s *Service) DecryptJSON(value string, out interface{}) error {
	if value == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.DecryptString(value)), out); err != nil {
		return fmt.Errorf("failed to unmarshal decrypted value: %w", err)
	}
	return nil
}

// IsEncrypted is a heuristic that lets legacy plaintext and ciphertext share a
// column.
func (s *Service) IsEncrypted(value string) bool {
	return IsEncrypted(value)
}

func IsEncrypted(value string) bool {
	if len(value) < minEncryptedLength {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(raw) >= HeaderSize
}

func (s *Service) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.masterKey, salt, s.kdf.n, s.kdf.r, s.kdf.p, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return aead, nil
}
