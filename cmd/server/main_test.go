package main

import (
	"testing"

	"tallerpos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	cases := []struct {
		pin    string
		wantOK bool
	}{
		{"739154", true},
		{"888888", false},
		{"345678", false},
		{"876543", false},
		{"112233", false},
	}
	for _, tc := range cases {
		err := validatePINStrength(tc.pin)
		if tc.wantOK && err != nil {
			t.Errorf("pin %s: unexpected rejection: %v", tc.pin, err)
		}
		if !tc.wantOK && err == nil {
			t.Errorf("pin %s: expected rejection", tc.pin)
		}
	}
}
