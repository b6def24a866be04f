package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	cfg := Default("owner-1")
	if cfg.Owner.ID != "owner-1" {
		t.Fatalf("owner id = %q", cfg.Owner.ID)
	}
	if cfg.Org.Scoped {
		t.Fatal("org scoping should default off")
	}
	if cfg.Ideation.Model == "" {
		t.Fatal("default ideation model missing")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRequiresOwner(t *testing.T) {
	_, err := FromYAML([]byte("owner:\n  id: \"\"\n"))
	if err == nil {
		t.Fatal("expected error for empty owner id")
	}
}

func TestValidateOrgScopedNeedsOrgID(t *testing.T) {
	_, err := FromYAML([]byte("owner:\n  id: op\norg:\n  scoped: true\n"))
	if err == nil {
		t.Fatal("expected error for scoped org without id")
	}
	cfg, err := FromYAML([]byte("owner:\n  id: op\norg:\n  id: J5CITH\n  scoped: true\n"))
	if err != nil {
		t.Fatalf("scoped org with id should validate: %v", err)
	}
	if !cfg.Org.Scoped || cfg.Org.ID != "J5CITH" {
		t.Fatalf("unexpected org config: %+v", cfg.Org)
	}
}

func TestValidateWebhookURL(t *testing.T) {
	_, err := FromYAML([]byte("owner:\n  id: op\nwebhooks:\n  - url: \"\"\n"))
	if err == nil {
		t.Fatal("expected error for webhook without url")
	}
}
