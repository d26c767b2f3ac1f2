package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"

	"review-auth/internal/config"
	"review-auth/internal/util"
)

// ResolveSigningKeys turns the configured kid->secret map into raw key
// bytes. With KMS enabled each configured value is base64 ciphertext
// decrypted at startup, so plaintext signing material never lives in the
// environment. Resolution happens once, before the codec is built; no code
// path can observe an uninitialized key set.
func ResolveSigningKeys(ctx context.Context, cfg *config.Config) (map[string][]byte, error) {
	if !cfg.KMS.Enabled {
		keys := make(map[string][]byte, len(cfg.JWT.Keys))
		for kid, secret := range cfg.JWT.Keys {
			keys[kid] = []byte(secret)
		}
		return keys, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KMS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := kms.NewFromConfig(awsCfg)

	keys := make(map[string][]byte, len(cfg.JWT.Keys))
	for kid, ciphertext := range cfg.JWT.Keys {
		raw, err := base64.StdEncoding.DecodeString(ciphertext)
		if err != nil {
			return nil, fmt.Errorf("signing key %q is not valid base64 ciphertext: %w", kid, err)
		}

		decryptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		out, err := client.Decrypt(decryptCtx, &kms.DecryptInput{CiphertextBlob: raw})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt signing key %q: %w", kid, err)
		}
		keys[kid] = out.Plaintext
	}

	util.Info("Signing keys decrypted via KMS",
		zap.Int("key_count", len(keys)),
		zap.String("active_kid", cfg.JWT.ActiveKeyID))
	return keys, nil
}
