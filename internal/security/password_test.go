package security

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("ops-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "ops-password" {
		t.Fatalf("hash equals plaintext")
	}
	if !CheckPassword(hash, "ops-password") {
		t.Errorf("CheckPassword() = false for the hashed password")
	}
	if CheckPassword(hash, "other-password") {
		t.Errorf("CheckPassword() = true for a wrong password")
	}
}

func TestCheckPasswordRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	if CheckPassword("not-a-bcrypt-hash", "ops-password") {
		t.Errorf("CheckPassword() = true for a malformed hash")
	}
}
