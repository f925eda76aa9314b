package server

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"cropcure/internal/logging"
)

const sessionKeySize = 32

// sessionKeys derives the cookie authentication and encryption keys from
// secret. An empty secret gets a random one, so sessions do not survive a
// restart.
func sessionKeys(secret string) (authKey, encKey []byte, err error) {
	master := []byte(secret)
	if len(master) == 0 {
		logging.Warnf("No session_secret configured, generating an ephemeral one")
		master = make([]byte, sessionKeySize)
		if _, err := rand.Read(master); err != nil {
			return nil, nil, err
		}
	}

	kdf := hkdf.New(sha256.New, master, nil, []byte("cropcure session v1"))
	authKey = make([]byte, sessionKeySize)
	encKey = make([]byte, sessionKeySize)
	if _, err := io.ReadFull(kdf, authKey); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(kdf, encKey); err != nil {
		return nil, nil, err
	}
	return authKey, encKey, nil
}
