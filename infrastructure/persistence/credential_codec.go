package persistence

import (
	"encoding/json"
	"fmt"

	"social-gateway/domain/model"
	"social-gateway/infrastructure/crypto"
)

// The stored payload is the whole credential serialized to JSON and sealed
// with AES-GCM, so the schema never learns any platform's token shape.

func encodeCredential(cipher *crypto.TokenCipher, cred *model.Credential) (string, error) {
	raw, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("marshal credential: %w", err)
	}
	sealed, err := cipher.Encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("encrypt credential: %w", err)
	}
	return sealed, nil
}

func decodeCredential(cipher *crypto.TokenCipher, payload string) (*model.Credential, error) {
	raw, err := cipher.Decrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	cred := &model.Credential{}
	if err := json.Unmarshal(raw, cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return cred, nil
}
