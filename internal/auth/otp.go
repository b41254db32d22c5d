package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ridwanullahh/qurandb/internal/models"
)

// EmailSender delivers one-time codes to users. Implemented by the email
// package; a nil sender disables every OTP flow.
type EmailSender interface {
	SendOTP(ctx context.Context, to, code, reason string) error
}

const otpTTL = 10 * time.Minute

type otpEntry struct {
	code    string
	reason  string
	expires time.Time
}

// otpStore holds outstanding one-time codes in memory, keyed by lowercased
// email. Codes survive neither restarts nor a successful verification.
type otpStore struct {
	mu      sync.Mutex
	pending map[string]otpEntry
	now     func() time.Time
}

func newOTPStore(now func() time.Time) *otpStore {
	return &otpStore{pending: map[string]otpEntry{}, now: now}
}

// generate issues a fresh 6 digit code for email, replacing any outstanding
// one.
func (o *otpStore) generate(email, reason string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	o.mu.Lock()
	o.pending[strings.ToLower(email)] = otpEntry{
		code:    code,
		reason:  reason,
		expires: o.now().Add(otpTTL),
	}
	o.mu.Unlock()
	return code, nil
}

// verify consumes the outstanding code for email. Expired and already used
// codes fail; a wrong guess leaves the code outstanding. The code is checked
// before expiry, so a wrong guess reports invalid even on an expired record.
func (o *otpStore) verify(email, code string) error {
	key := strings.ToLower(email)
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.pending[key]
	if !ok || e.code != code {
		return models.Unauthorized("invalid verification code")
	}
	if o.now().After(e.expires) {
		delete(o.pending, key)
		return models.Expired("verification code")
	}
	delete(o.pending, key)
	return nil
}
