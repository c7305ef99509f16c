// Package otp issues and checks the 6-digit codes used for email verification
// and password reset.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"authapi/internal/model"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
	// CodeLength is the number of digits in a code.
	CodeLength = 6

	codeMin = 100000
	codeMax = 999999
)

var (
	// ErrInvalidCode is returned when no code is pending or the submitted code does not match.
	ErrInvalidCode = errors.New("invalid otp")
	// ErrExpired is returned when the matching code is past its expiry.
	ErrExpired = errors.New("otp has expired")
)

// Engine generates and validates codes. The zero value is not usable; use NewEngine.
type Engine struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom overrides the entropy source.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.random = r }
}

// NewEngine returns an Engine issuing codes valid for ttl.
func NewEngine(ttl time.Duration, opts ...Option) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := &Engine{ttl: ttl, now: time.Now, random: rand.Reader}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the code lifetime.
func (e *Engine) TTL() time.Duration {
	return e.ttl
}

// Issue generates a fresh code and stores it on user, replacing any pending one.
// Persisting the user is the caller's job.
func (e *Engine) Issue(user *model.User) (string, error) {
	code, err := e.generate()
	if err != nil {
		return "", err
	}
	user.SetOTP(code, e.now().Add(e.ttl))
	return code, nil
}

// Verify checks submitted against the pending challenge on user.
// The caller clears the challenge after success.
func (e *Engine) Verify(user *model.User, submitted string) error {
	if !user.HasOTP() {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(submitted)) != 1 {
		return ErrInvalidCode
	}
	if e.now().After(*user.OTPExpiresAt) {
		return ErrExpired
	}
	return nil
}

// generate draws uniformly from [codeMin, codeMax].
func (e *Engine) generate() (string, error) {
	n, err := rand.Int(e.random, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()+codeMin), nil
}
