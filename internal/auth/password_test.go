package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("original password should verify")
	}
	if VerifyPassword(hash, "correct horse battery stapl") {
		t.Fatal("truncated password should not verify")
	}
	if VerifyPassword(hash, "Correct horse battery staple") {
		t.Fatal("case-flipped password should not verify")
	}
}

func TestVerifyPasswordGarbageHash(t *testing.T) {
	if VerifyPassword("not-a-bcrypt-hash", "whatever") {
		t.Fatal("malformed hash should never verify")
	}
	if VerifyPassword("", "whatever") {
		t.Fatal("empty hash should never verify")
	}
}
