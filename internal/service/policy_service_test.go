package service

import (
	"testing"
	"time"
)

func TestValidateEffectiveDateWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name          string
		effectiveDate time.Time
		wantErr       bool
	}{
		{"exactly one year ago", now.AddDate(-1, 0, 0), false},
		{"exactly two years ago", now.AddDate(-2, 0, 0), false},
		{"middle of the window", now.AddDate(-1, -6, 0), false},
		{"eleven months ago is too recent", now.AddDate(0, -11, 0), true},
		{"yesterday is too recent", now.AddDate(0, 0, -1), true},
		{"today is too recent", now, true},
		{"twenty-five months ago is too old", now.AddDate(-2, -1, 0), true},
		{"five years ago is too old", now.AddDate(-5, 0, 0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEffectiveDate(tc.effectiveDate, now)
			if tc.wantErr && err == nil {
				t.Errorf("expected %s to be rejected", tc.effectiveDate.Format("2006-01-02"))
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected %s to be accepted, got %v", tc.effectiveDate.Format("2006-01-02"), err)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	roles := []string{"koordinator-instansi", "analis-instansi"}

	if !hasRole(roles, "analis-instansi") {
		t.Error("expected analis-instansi to be found")
	}
	if hasRole(roles, "admin") {
		t.Error("admin should not be found")
	}
	if hasRole(nil, "admin") {
		t.Error("empty role set should match nothing")
	}
}
