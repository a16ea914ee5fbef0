package entity

import (
	"math"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{"user", RoleFree, true},
		{"Free", RoleFree, true},
		{"paid user", RolePaid, true},
		{"guest", RoleGuest, true},
		{"superuser", Role("superuser"), false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestModelRateLimit_Windows(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &ModelRateLimit{Model: "m", RPMLimit: 2, RPDLimit: 10}

	if !m.ResetExpiredWindows(start) {
		t.Fatal("zero windows should reset")
	}
	m.RecordGeneration(100)
	m.RecordGeneration(0)
	if m.RPM != 2 || m.RPD != 2 || m.TPM != 100 || m.TotalGenerations != 2 {
		t.Fatalf("counters = %+v", m)
	}
	if !m.Exhausted() {
		t.Fatal("rpm at limit should be exhausted")
	}

	if m.ResetExpiredWindows(start.Add(30 * time.Second)) {
		t.Fatal("window still open, no reset expected")
	}

	m.ResetExpiredWindows(start.Add(2 * time.Minute))
	if m.RPM != 0 || m.TPM != 0 || m.RPD != 2 {
		t.Fatalf("after minute reset = rpm %d tpm %d rpd %d", m.RPM, m.TPM, m.RPD)
	}
	if m.Exhausted() {
		t.Fatal("should be available after minute window reset")
	}

	m.ResetExpiredWindows(start.Add(25 * time.Hour))
	if m.RPD != 0 {
		t.Fatalf("rpd after day reset = %d", m.RPD)
	}
}

func TestModelRateLimit_UnsetLimitsNeverExhaust(t *testing.T) {
	m := &ModelRateLimit{RPM: 1000, TPM: 1000, RPD: 1000}
	if m.Exhausted() {
		t.Fatal("limits of zero are not enforced")
	}
}

func TestModelRateLimit_AverageRating(t *testing.T) {
	m := &ModelRateLimit{}
	if m.AverageRating() != 0 {
		t.Fatal("no ratings should average 0")
	}
	m.AddRating(Rating{ContentAccuracy: 1, Formatting: 1, OverallQuality: 1})
	m.AddRating(Rating{ContentAccuracy: 0, Formatting: 0.5, OverallQuality: 0.5})
	// (1+1+1+0+0.5+0.5) / (2*3) * 5 = 3.333...
	if got := m.AverageRating(); math.Abs(got-10.0/3.0) > 1e-9 {
		t.Fatalf("AverageRating() = %v", got)
	}
}

func TestRating_Validate(t *testing.T) {
	if err := (Rating{ContentAccuracy: 1, Formatting: 0, OverallQuality: 0.5}).Validate(); err != nil {
		t.Fatalf("valid rating rejected: %v", err)
	}
	if err := (Rating{ContentAccuracy: 1.5}).Validate(); err == nil {
		t.Fatal("out of range rating accepted")
	}
	if err := (Rating{Formatting: -0.1}).Validate(); err == nil {
		t.Fatal("negative rating accepted")
	}
}

func TestUser_MarkGeneratedMonotonic(t *testing.T) {
	u := NewUser("u-1")
	later := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	u.MarkGenerated(later)
	u.MarkGenerated(later.Add(-time.Hour))
	if !u.LastGenerationDate.Equal(later) {
		t.Fatalf("LastGenerationDate = %v, want %v", u.LastGenerationDate, later)
	}
}

func TestUser_IsAdmin(t *testing.T) {
	u := NewUser("u-1")
	if u.IsAdmin() {
		t.Fatal("new user should not be admin")
	}
	u.Role = RoleAdmin
	if !u.IsAdmin() {
		t.Fatal("admin role not recognized")
	}
}
