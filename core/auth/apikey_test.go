package auth

import (
	"testing"

	"kestrel-irp/config"
)

func TestHashAndVerifyAPIKey(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyAPIKey(hash, "s3cret") {
		t.Fatalf("correct key rejected")
	}
	if VerifyAPIKey(hash, "s3cret ") {
		t.Fatalf("wrong key accepted")
	}
	if VerifyAPIKey("not-a-hash", "s3cret") {
		t.Fatalf("malformed hash verified")
	}
	other, err := HashAPIKey("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if other == hash {
		t.Fatalf("salt not randomized")
	}
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashAPIKey("alpha")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := config.AuthConfig{Keys: []config.APIKey{{ID: "k1", Role: "analyst", Hash: hash}}}
	p := Authenticate(cfg, "alpha")
	if p == nil || p.ID != "k1" || p.Role != "analyst" {
		t.Fatalf("principal = %+v", p)
	}
	if Authenticate(cfg, "beta") != nil {
		t.Fatalf("unknown key authenticated")
	}
	if Authenticate(cfg, "") != nil {
		t.Fatalf("empty key authenticated")
	}
}
