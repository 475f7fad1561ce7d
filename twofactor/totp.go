package twofactor

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/radelabs/authcore/internal"
)

const totpSecretBytes = 20

// TOTPConfig tunes the time-based one-time-code provider. Zero fields
// take RFC 6238 defaults (SHA1, 6 digits, 30-second period, ±1 step).
type TOTPConfig struct {
	Issuer            string
	Digits            int
	Period            int
	Skew              int
	Algorithm         string
	RecoveryCodeCount int
	Now               func() time.Time
}

// TOTPProvider is the production two-factor variant: RFC 6238 codes
// with a last-used-counter replay guard and single-use recovery codes.
// All state lives in the injected StateStore.
type TOTPProvider struct {
	config TOTPConfig
	store  StateStore
}

// NewTOTPProvider validates cfg and returns a provider backed by store.
func NewTOTPProvider(cfg TOTPConfig, store StateStore) (*TOTPProvider, error) {
	if store == nil {
		return nil, errors.New("nil state store")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("totp issuer required")
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, errors.New("totp digits out of range")
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Period < 15 || cfg.Period > 120 {
		return nil, errors.New("totp period out of range")
	}
	if cfg.Skew < 0 || cfg.Skew > 2 {
		return nil, errors.New("totp skew out of range")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if _, err := hmacFunc(cfg.Algorithm); err != nil {
		return nil, err
	}
	if cfg.RecoveryCodeCount == 0 {
		cfg.RecoveryCodeCount = 8
	}
	if cfg.RecoveryCodeCount < 4 || cfg.RecoveryCodeCount > 16 {
		return nil, errors.New("recovery code count out of range")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TOTPProvider{config: cfg, store: store}, nil
}

// IsEnabled reports whether logins for userID must be gated. Pending
// enrollments do not gate.
func (p *TOTPProvider) IsEnabled(ctx context.Context, userID string) (bool, error) {
	state, err := p.store.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	return state != nil && state.Status == StatusEnabled, nil
}

// Status returns the full state machine position for userID.
func (p *TOTPProvider) Status(ctx context.Context, userID string) (Status, error) {
	state, err := p.store.Load(ctx, userID)
	if err != nil {
		return StatusDisabled, err
	}
	if state == nil {
		return StatusDisabled, nil
	}
	return state.Status, nil
}

// Enable starts enrollment: it generates a fresh shared secret and
// recovery codes, stores the state as pending, and returns the setup
// material. Calling Enable again while pending reissues fresh material;
// calling it when already enabled fails with [ErrAlreadyEnabled].
func (p *TOTPProvider) Enable(ctx context.Context, userID, account string) (*Setup, error) {
	current, err := p.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Status == StatusEnabled {
		return nil, ErrAlreadyEnabled
	}

	secret := make([]byte, totpSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	codes := make([]string, 0, p.config.RecoveryCodeCount)
	hashes := make([]string, 0, p.config.RecoveryCodeCount)
	for i := 0; i < p.config.RecoveryCodeCount; i++ {
		code, err := internal.NewRecoveryCode()
		if err != nil {
			return nil, err
		}
		sum := internal.HashRecoveryCode(code)
		codes = append(codes, code)
		hashes = append(hashes, hex.EncodeToString(sum[:]))
	}

	state := &State{
		Status:         StatusPendingConfirmation,
		Secret:         secret,
		RecoveryHashes: hashes,
	}
	if err := p.store.Save(ctx, userID, state); err != nil {
		return nil, err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	shared := enc.EncodeToString(secret)

	return &Setup{
		Secret:        shared,
		EnrollmentURI: p.provisionURI(shared, account),
		RecoveryCodes: codes,
	}, nil
}

// Disable returns the user to the initial state, clearing secret
// material and recovery codes. Disabling a user with no state is a
// no-op.
func (p *TOTPProvider) Disable(ctx context.Context, userID string) error {
	return p.store.Delete(ctx, userID)
}

// Verify checks code against the user's secret. While pending, a
// correct code confirms enrollment and transitions to enabled; while
// enabled, a correct code must advance the last-used counter or it is
// rejected as a replay.
func (p *TOTPProvider) Verify(ctx context.Context, userID, code string) error {
	_, err := p.store.Update(ctx, userID, func(state *State) error {
		ok, counter, verr := p.verifyCode(state.Secret, code, p.config.Now())
		if verr != nil {
			return verr
		}
		if !ok {
			return ErrCodeIncorrect
		}
		if counter <= state.LastCounter && state.LastCounter > 0 {
			return ErrCodeReplayed
		}

		state.LastCounter = counter
		if state.Status == StatusPendingConfirmation {
			state.Status = StatusEnabled
		}
		return nil
	})
	return err
}

// VerifyRecovery consumes a recovery code. Codes are single-use: the
// matching hash is removed in the same atomic update that accepts it.
func (p *TOTPProvider) VerifyRecovery(ctx context.Context, userID, code string) error {
	sum := internal.HashRecoveryCode(strings.ToUpper(strings.TrimSpace(code)))
	want := hex.EncodeToString(sum[:])

	_, err := p.store.Update(ctx, userID, func(state *State) error {
		if state.Status != StatusEnabled {
			return ErrRecoveryInvalid
		}
		for i, h := range state.RecoveryHashes {
			if subtle.ConstantTimeCompare([]byte(h), []byte(want)) == 1 {
				state.RecoveryHashes = append(state.RecoveryHashes[:i], state.RecoveryHashes[i+1:]...)
				return nil
			}
		}
		return ErrRecoveryInvalid
	})
	return err
}

// Resend is unsupported: TOTP codes are generated on the user's device
// and there is nothing to deliver.
func (p *TOTPProvider) Resend(context.Context, string) error {
	return ErrResendUnsupported
}

func (p *TOTPProvider) provisionURI(secretBase32, account string) string {
	issuer := p.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(p.config.Period))
	v.Set("digits", strconv.Itoa(p.config.Digits))
	v.Set("algorithm", strings.ToUpper(p.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

func (p *TOTPProvider) verifyCode(secret []byte, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != p.config.Digits || !isNumericString(trimmed) {
		return false, 0, nil
	}
	if len(secret) == 0 {
		return false, 0, errors.New("empty totp secret")
	}

	baseCounter := now.Unix() / int64(p.config.Period)
	for step := -p.config.Skew; step <= p.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, p.config.Digits, p.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}

	return false, 0, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
