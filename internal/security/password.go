package security

import "golang.org/x/crypto/bcrypt"

// opsPasswordCost is the bcrypt work factor for the ops credential. The
// hash is compared once per ops login, never on the public link surface.
const opsPasswordCost = 12

// HashPassword derives the bcrypt hash an operator stores in the ops
// password-hash config field when provisioning the credential.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), opsPasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the configured hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
