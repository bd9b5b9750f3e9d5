// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword returned empty hash")
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	b, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestCheckPassword_Correct(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	valid, err := CheckPassword("changeme", hash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("Correct password was rejected")
	}
}

func TestCheckPassword_Wrong(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	valid, err := CheckPassword("wrongpassword", hash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if valid {
		t.Fatal("Wrong password was accepted")
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{"", "plaintext", "$bcrypt$whatever", "$argon2id$v=19$m=1,t=1,p=1$notbase64!$also!"} {
		if valid, err := CheckPassword("changeme", h); err == nil && valid {
			t.Errorf("malformed hash %q accepted", h)
		}
	}
}

func TestCheckPassword_ForeignParameters(t *testing.T) {
	// Hashes created with older parameters still verify.
	old := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"

	valid, err := CheckPassword("changeme", old)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("hash with older parameters rejected correct password")
	}
}

func TestNeedsRehash(t *testing.T) {
	current, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if NeedsRehash(current) {
		t.Error("freshly created hash flagged for rehash")
	}

	old := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"
	if !NeedsRehash(old) {
		t.Error("hash with older parameters not flagged for rehash")
	}

	if !NeedsRehash("garbage") {
		t.Error("malformed hash not flagged for rehash")
	}
}

func TestDummyHash_Verifiable(t *testing.T) {
	// The dummy hash only has to be well-formed so verification runs the
	// full argon2 computation; it must never match a real password.
	valid, err := CheckPassword("anything", DummyHash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if valid {
		t.Fatal("dummy hash matched a password")
	}
}
