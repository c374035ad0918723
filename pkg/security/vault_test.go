package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/bluehorizon/skydesk/pkg/config"
	"github.com/bluehorizon/skydesk/pkg/security"
)

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
	}
}

func TestSealAndOpen(t *testing.T) {
	vault, err := security.NewVault("correct horse", testConfig())
	if err != nil {
		t.Fatalf("NewVault returned error: %v", err)
	}

	sealed, err := vault.Seal([]byte(`{"did":"did:plc:me"}`))
	if err != nil {
		t.Fatalf("Seal returned error: %v", err)
	}
	if !strings.HasPrefix(sealed, "$skyvault$v=1$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected sealed prefix %q", sealed)
	}
	if strings.Contains(sealed, "did:plc:me") {
		t.Fatal("sealed payload leaks plaintext")
	}

	plain, err := vault.Open(sealed)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if string(plain) != `{"did":"did:plc:me"}` {
		t.Fatalf("unexpected plaintext %q", plain)
	}

	again, _ := vault.Seal([]byte(`{"did":"did:plc:me"}`))
	if again == sealed {
		t.Fatal("each seal should use a fresh salt and nonce")
	}
}

func TestOpenWithWrongPassphrase(t *testing.T) {
	vault, _ := security.NewVault("one", testConfig())
	other, _ := security.NewVault("two", testConfig())

	sealed, err := vault.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal returned error: %v", err)
	}
	if _, err := other.Open(sealed); !errors.Is(err, security.ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	vault, _ := security.NewVault("one", testConfig())
	for _, input := range []string{"", "not-sealed", "$argon2id$v=19$m=1,t=1,p=1$AAAA$AAAA", "$skyvault$v=1$m=1024,t=1,p=1$AAAA$AAAA"} {
		if _, err := vault.Open(input); !errors.Is(err, security.ErrInvalidSeal) {
			t.Fatalf("expected ErrInvalidSeal for %q, got %v", input, err)
		}
	}
}

func TestNewVaultRequiresPassphrase(t *testing.T) {
	if _, err := security.NewVault("", testConfig()); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}
