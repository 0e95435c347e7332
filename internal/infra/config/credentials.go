package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// The credentials file is a flat key→value YAML map: provider keys under the
// provider id, messaging secrets under "messaging.<field>". Values are
// encrypted when JUNOAI_CONFIG_KEY is set; the file is owner-only either way.

// UpsertCredentials merges values into the credentials file at path,
// encrypting each one when JUNOAI_CONFIG_KEY is set.
func UpsertCredentials(path string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	creds := make(map[string]string)
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, &creds)
	}

	passphrase := os.Getenv("JUNOAI_CONFIG_KEY")
	for k, v := range values {
		if passphrase != "" {
			enc, err := EncryptValue(passphrase, v)
			if err != nil {
				return fmt.Errorf("encrypt credential: %w", err)
			}
			v = enc
		}
		creds[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// ReadCredential returns one stored value, decrypting when needed. Empty
// string when the file or the key is absent.
func ReadCredential(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read credentials: %w", err)
	}
	creds := make(map[string]string)
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parse credentials: %w", err)
	}
	return DecryptValue(os.Getenv("JUNOAI_CONFIG_KEY"), creds[key])
}
