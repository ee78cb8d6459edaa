package signer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// DefaultVaultKeyField is the secret field holding the hex-encoded key when
// the URI names none.
const DefaultVaultKeyField = "private_key"

// NewLocalFromVault reads a hex-encoded private key from a Vault KV-v2
// secret and returns a Local signer. Authentication uses the ambient Vault
// token (VAULT_TOKEN or ~/.vault-token).
func NewLocalFromVault(ctx context.Context, address, mount, secretPath, field string, chainID *big.Int, log *slog.Logger) (*Local, error) {
	config := vault.DefaultConfig()
	config.Address = address

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}

	secret, err := client.KVv2(mount).Get(ctx, secretPath)
	if err != nil {
		return nil, fmt.Errorf("read vault secret %s/%s: %w", mount, secretPath, err)
	}

	raw, ok := secret.Data[field]
	if !ok {
		return nil, fmt.Errorf("vault secret %s/%s has no field %q", mount, secretPath, field)
	}
	hexKey, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("vault secret field %q is not a string", field)
	}

	log.Info("Loaded signer key from Vault",
		slog.String("mount", mount),
		slog.String("path", secretPath))

	return NewLocalFromHex(hexKey, chainID)
}

// FromURI creates a signer from a key source URI.
//
// Supported schemes:
//   - file:///path/to/key.hex
//   - vault://host:port/mount/path?field=private_key&scheme=https
func FromURI(ctx context.Context, keyURI string, chainID *big.Int, log *slog.Logger) (*Local, error) {
	u, err := url.Parse(keyURI)
	if err != nil {
		return nil, fmt.Errorf("invalid key URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		return NewLocalFromFile(path, chainID)

	case "vault":
		scheme := u.Query().Get("scheme")
		if scheme == "" {
			scheme = "https"
		}
		segments := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
			return nil, fmt.Errorf("vault key URI must be vault://host:port/mount/path")
		}
		field := u.Query().Get("field")
		if field == "" {
			field = DefaultVaultKeyField
		}
		address := fmt.Sprintf("%s://%s", scheme, u.Host)
		return NewLocalFromVault(ctx, address, segments[0], segments[1], field, chainID, log)

	default:
		return nil, fmt.Errorf("unsupported key source scheme: %s", u.Scheme)
	}
}
