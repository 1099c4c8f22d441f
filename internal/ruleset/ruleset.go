// Package ruleset defines the versioned configuration records that
// parametrize the simulators, and the keys identifying each simulator kind.
package ruleset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownKey is returned when a simulator key is not one of the fixed kinds.
var ErrUnknownKey = errors.New("unknown simulator key")

// Key identifies a simulator kind.
type Key string

// Simulator kinds.
const (
	Honorarios Key = "HONORARIOS"
	Rescisao   Key = "RESCISAO"
	Ferias     Key = "FERIAS"
	FatorR     Key = "FATOR_R"
	SimplesDAS Key = "SIMPLES_DAS"
)

// Keys lists every simulator kind in a stable order.
func Keys() []Key {
	return []Key{Honorarios, Rescisao, Ferias, FatorR, SimplesDAS}
}

// Valid reports whether k is one of the fixed simulator kinds.
func (k Key) Valid() bool {
	switch k {
	case Honorarios, Rescisao, Ferias, FatorR, SimplesDAS:
		return true
	}
	return false
}

// ParseKey normalizes and checks a key taken from user input.
func ParseKey(raw string) (Key, error) {
	k := Key(strings.ToUpper(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, raw)
	}
	return k, nil
}

// Payload is the untyped configuration body of a RuleSet. Its shape is
// determined by the RuleSet key.
type Payload map[string]interface{}

// Clone returns a deep copy of p by round-tripping it through JSON, which
// also normalizes nested values to the types produced by encoding/json.
func (p Payload) Clone() (Payload, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return out, nil
}

// RuleSet is one immutable version of a simulator configuration for a tenant.
type RuleSet struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenantId"`
	Key       Key       `json:"key"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"isActive"`
	Payload   Payload   `json:"payload"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds an unsaved RuleSet with a fresh ID. Version is assigned by the store.
func New(tenant string, key Key, payload Payload, author string, active bool, now time.Time) *RuleSet {
	return &RuleSet{
		ID:        uuid.New(),
		TenantID:  tenant,
		Key:       key,
		IsActive:  active,
		Payload:   payload,
		CreatedBy: author,
		CreatedAt: now.UTC(),
	}
}
