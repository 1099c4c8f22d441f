package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/leadtunic/maxtabil-app-sub001/internal/resolver"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/defaults"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/schema"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store"
	"github.com/leadtunic/maxtabil-app-sub001/internal/store/memory"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, key ruleset.Key, tenant string) error {
	r.calls = append(r.calls, tenant+"/"+string(key))
	return nil
}

func TestPublishActivatesAndResolves(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := &recordingInvalidator{}
	svc := New(s, inv, nil, nil)

	payload := defaults.MustDefault(ruleset.Ferias)
	payload["limiteDiasAbono"] = 5.0

	created, err := svc.Publish(ctx, "escritorio-1", ruleset.Ferias, payload, "ana", true)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if created.Version != 1 || !created.IsActive || created.CreatedBy != "ana" {
		t.Errorf("unexpected rule set %+v", created)
	}
	if len(inv.calls) != 1 || inv.calls[0] != "escritorio-1/FERIAS" {
		t.Errorf("invalidations = %v", inv.calls)
	}

	res, err := resolver.New(resolver.NewStoreSource(s, nil), nil, nil).ResolveActive(ctx, ruleset.Ferias, "escritorio-1")
	if err != nil {
		t.Fatalf("ResolveActive() error = %v", err)
	}
	if res.IsFallback || res.Config["limiteDiasAbono"] != 5.0 {
		t.Errorf("resolved %+v, expected the published payload", res)
	}
}

func TestPublishInvalidStoresNothing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := New(s, nil, nil, nil)

	payload := defaults.MustDefault(ruleset.Honorarios)
	payload["descontoSistemaFinanceiro"] = 1.5
	delete(payload, "baseMin")

	_, err := svc.Publish(ctx, "t", ruleset.Honorarios, payload, "ana", true)
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Publish() error = %v, expected *schema.ValidationError", err)
	}
	if len(verr.Violations) < 2 {
		t.Errorf("expected every violation to be reported, got %+v", verr.Violations)
	}

	history, err := svc.History(ctx, "t", ruleset.Honorarios)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("invalid payload was stored: %+v", history)
	}
}

func TestPublishInactiveKeepsCurrentVersion(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := &recordingInvalidator{}
	svc := New(s, inv, nil, nil)

	if _, err := svc.Publish(ctx, "t", ruleset.FatorR, defaults.MustDefault(ruleset.FatorR), "", true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	draft := defaults.MustDefault(ruleset.FatorR)
	draft["threshold"] = 0.3
	if _, err := svc.Publish(ctx, "t", ruleset.FatorR, draft, "", false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	active, _ := s.GetActive(ctx, ruleset.FatorR, "t")
	if active == nil || active.Version != 1 {
		t.Fatalf("active = %+v, expected version 1", active)
	}
	if len(inv.calls) != 1 {
		t.Errorf("draft publication should not invalidate, calls = %v", inv.calls)
	}

	if _, err := svc.Activate(ctx, "t", ruleset.FatorR, 2); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	active, _ = s.GetActive(ctx, ruleset.FatorR, "t")
	if active.Version != 2 {
		t.Errorf("active version = %d, expected 2", active.Version)
	}
	if len(inv.calls) != 2 {
		t.Errorf("activation should invalidate, calls = %v", inv.calls)
	}

	history, _ := svc.History(ctx, "t", ruleset.FatorR)
	activeCount := 0
	for _, rs := range history {
		if rs.IsActive {
			activeCount++
		}
	}
	if len(history) != 2 || activeCount != 1 {
		t.Errorf("history = %d versions with %d active", len(history), activeCount)
	}
}

func TestActivateUnknownVersion(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil)
	_, err := svc.Activate(context.Background(), "t", ruleset.FatorR, 3)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Activate() error = %v, expected ErrNotFound", err)
	}
}

func TestPublishDefaultsTenant(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil)
	created, err := svc.Publish(context.Background(), "", ruleset.Rescisao, defaults.MustDefault(ruleset.Rescisao), "", true)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if created.TenantID != constants.DefaultTenant {
		t.Errorf("TenantID = %q, expected %q", created.TenantID, constants.DefaultTenant)
	}
}

func TestPublishUnknownKey(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil)
	if _, err := svc.Publish(context.Background(), "t", ruleset.Key("INSS"), ruleset.Payload{}, "", true); !errors.Is(err, ruleset.ErrUnknownKey) {
		t.Errorf("Publish() error = %v, expected ErrUnknownKey", err)
	}
}
