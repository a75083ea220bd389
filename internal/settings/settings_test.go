package settings

import (
	"os"
	"path/filepath"
	"testing"

	"coffeetime/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	s := Load(t.TempDir())
	if got := s.Appearance(); got != models.AppearanceSystem {
		t.Errorf("Appearance() = %q, want system", got)
	}
	if got := s.FreshLocation(); got != "" {
		t.Errorf("FreshLocation() = %q, want empty", got)
	}
}

func TestSetAppearancePersists(t *testing.T) {
	dir := t.TempDir()
	s := Load(dir)
	if err := s.SetAppearance(models.AppearanceDark); err != nil {
		t.Fatalf("SetAppearance() error = %v", err)
	}

	reloaded := Load(dir)
	if got := reloaded.Appearance(); got != models.AppearanceDark {
		t.Errorf("Appearance() after reload = %q, want dark", got)
	}
}

func TestSetAppearanceRejectsUnknown(t *testing.T) {
	s := Load(t.TempDir())
	if err := s.SetAppearance("sepia"); err == nil {
		t.Error("SetAppearance(sepia) expected error")
	}
	if got := s.Appearance(); got != models.AppearanceSystem {
		t.Errorf("Appearance() = %q, want unchanged system", got)
	}
}

func TestStoredValues(t *testing.T) {
	tests := []struct {
		name string
		file string
		want models.Appearance
	}{
		{"light", `{"appearance":"light"}`, models.AppearanceLight},
		{"unknown value", `{"appearance":"neon"}`, models.AppearanceSystem},
		{"missing key", `{}`, models.AppearanceSystem},
		{"malformed file", `{"appearance":`, models.AppearanceSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.file), 0o644); err != nil {
				t.Fatal(err)
			}
			if got := Load(dir).Appearance(); got != tt.want {
				t.Errorf("Appearance() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFreshLocationKeepsAppearance(t *testing.T) {
	dir := t.TempDir()
	s := Load(dir)
	s.SetAppearance(models.AppearanceLight)
	if err := s.SetFreshLocation("/data/coffeetime/CoffeeTimeLocalFresh-x.sqlite"); err != nil {
		t.Fatalf("SetFreshLocation() error = %v", err)
	}

	reloaded := Load(dir)
	if reloaded.Appearance() != models.AppearanceLight {
		t.Error("appearance lost after saving fresh location")
	}
	if reloaded.FreshLocation() != "/data/coffeetime/CoffeeTimeLocalFresh-x.sqlite" {
		t.Errorf("FreshLocation() = %q", reloaded.FreshLocation())
	}
}
