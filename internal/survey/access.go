package survey

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxCodeLen is the longest input bcrypt compares in full.
const maxCodeLen = 72

// AccessGate checks the shared participation code. It is a filter, not authentication.
type AccessGate struct {
	hash []byte
}

// NewAccessGate hashes a plain access code.
func NewAccessGate(code string) (*AccessGate, error) {
	return newAccessGate(code, bcrypt.DefaultCost)
}

func newAccessGate(code string, cost int) (*AccessGate, error) {
	if code == "" {
		return nil, errors.New("access code is empty")
	}
	if len(code) > maxCodeLen {
		return nil, fmt.Errorf("access code longer than %d bytes", maxCodeLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return nil, fmt.Errorf("hash access code: %w", err)
	}
	return &AccessGate{hash: hash}, nil
}

// NewAccessGateFromHash uses a bcrypt hash of the access code.
func NewAccessGateFromHash(hash string) (*AccessGate, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("parse access code hash: %w", err)
	}
	return &AccessGate{hash: []byte(hash)}, nil
}

// Check reports whether code matches exactly.
func (g *AccessGate) Check(code string) bool {
	if code == "" || len(code) > maxCodeLen {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(code)) == nil
}
