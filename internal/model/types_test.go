package model

import (
	"testing"
	"time"
)

func TestParseRealm(t *testing.T) {
	cases := []struct {
		in      string
		want    Realm
		wantErr bool
	}{
		{"mobile", RealmMobile, false},
		{"web", RealmWeb, false},
		{"", RealmMobile, false}, // absent selector defaults to mobile
		{"admin", "", true},
		{"Mobile", "", true},
	}
	for _, tc := range cases {
		got, err := ParseRealm(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRealm(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRealm(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRealm(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOTPActive(t *testing.T) {
	now := time.Now()
	base := OTP{ExpiresAt: now.Add(time.Minute)}

	if !base.Active(now) {
		t.Error("fresh code should be active")
	}

	used := base
	used.Used = true
	if used.Active(now) {
		t.Error("consumed code should not be active")
	}

	revoked := base
	revoked.Revoked = true
	if revoked.Active(now) {
		t.Error("superseded code should not be active")
	}

	expired := base
	expired.ExpiresAt = now.Add(-time.Second)
	if expired.Active(now) {
		t.Error("expired code should not be active")
	}
}
