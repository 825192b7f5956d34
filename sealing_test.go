package mailcapture

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/infodancer/mailcapture/errors"
)

func testSealKeys(t *testing.T) (pub, priv []byte) {
	t.Helper()
	pubHex, privHex, err := GenerateSealKeys()
	if err != nil {
		t.Fatalf("GenerateSealKeys failed: %v", err)
	}
	if pub, err = ParseSealKey(pubHex); err != nil {
		t.Fatalf("ParseSealKey(pub) failed: %v", err)
	}
	if priv, err = ParseSealKey(privHex); err != nil {
		t.Fatalf("ParseSealKey(priv) failed: %v", err)
	}
	return pub, priv
}

func TestSealedCodec_RoundTrip(t *testing.T) {
	pub, priv := testSealKeys(t)
	codec, err := NewSealedCodec(nil, pub, priv)
	if err != nil {
		t.Fatalf("NewSealedCodec failed: %v", err)
	}
	want := testRecord()

	data, err := codec.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.HasPrefix(data, sealMagic) {
		t.Errorf("expected sealed prefix, got %q", data[:4])
	}
	if bytes.Contains(data, []byte("Test message body")) {
		t.Error("sealed record contains plaintext")
	}

	got, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	assertRecordEqual(t, got, want)
}

func TestSealedCodec_NondeterministicOutput(t *testing.T) {
	pub, _ := testSealKeys(t)
	codec, err := NewSealedCodec(nil, pub, nil)
	if err != nil {
		t.Fatalf("NewSealedCodec failed: %v", err)
	}

	first, err := codec.Marshal(testRecord())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	second, err := codec.Marshal(testRecord())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("expected fresh ephemeral key and nonce per record")
	}
}

func TestSealedCodec_WriteOnly(t *testing.T) {
	pub, _ := testSealKeys(t)
	codec, err := NewSealedCodec(nil, pub, nil)
	if err != nil {
		t.Fatalf("NewSealedCodec failed: %v", err)
	}
	data, err := codec.Marshal(testRecord())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := codec.Unmarshal(data); !stderrors.Is(err, errors.ErrSealKeyMissing) {
		t.Fatalf("expected ErrSealKeyMissing, got %v", err)
	}
}

func TestSealedCodec_WrongKey(t *testing.T) {
	pub, _ := testSealKeys(t)
	_, otherPriv := testSealKeys(t)

	writer, err := NewSealedCodec(nil, pub, nil)
	if err != nil {
		t.Fatalf("NewSealedCodec failed: %v", err)
	}
	reader, err := NewSealedCodec(nil, nil, otherPriv)
	if err != nil {
		t.Fatalf("NewSealedCodec failed: %v", err)
	}

	data, err := writer.Marshal(testRecord())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := reader.Unmarshal(data); err == nil {
		t.Fatal("expected decryption failure with the wrong key")
	}
	if _, err := reader.Unmarshal(data[:len(sealMagic)+10]); err == nil {
		t.Fatal("expected error for truncated sealed record")
	}
}

func TestSealedCodec_ReadsPlainRecords(t *testing.T) {
	_, priv := testSealKeys(t)
	codec, err := NewSealedCodec(nil, nil, priv)
	if err != nil {
		t.Fatalf("NewSealedCodec failed: %v", err)
	}

	plain, err := CBORCodec{}.Marshal(testRecord())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := codec.Unmarshal(plain)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	assertRecordEqual(t, got, testRecord())
}

func TestNewSealedCodec_Errors(t *testing.T) {
	pub, priv := testSealKeys(t)

	tests := []struct {
		name       string
		pub, priv  []byte
		wantTarget error
	}{
		{"no keys", nil, nil, errors.ErrSealKeyMissing},
		{"short public key", pub[:16], nil, errors.ErrInvalidKeyFormat},
		{"short private key", pub, priv[:16], errors.ErrInvalidKeyFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSealedCodec(nil, tt.pub, tt.priv); !stderrors.Is(err, tt.wantTarget) {
				t.Errorf("expected %v, got %v", tt.wantTarget, err)
			}
		})
	}
}

func TestPublicKeyFor(t *testing.T) {
	pub, priv := testSealKeys(t)

	derived, err := PublicKeyFor(priv)
	if err != nil {
		t.Fatalf("PublicKeyFor failed: %v", err)
	}
	if !bytes.Equal(derived, pub) {
		t.Errorf("derived public key does not match generated pair")
	}
}

func TestParseSealKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f", false},
		{"surrounding space", " 000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f\n", false},
		{"not hex", "zz", true},
		{"too short", "0001", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSealKey(tt.input)
			if tt.wantErr {
				if !stderrors.Is(err, errors.ErrInvalidKeyFormat) {
					t.Errorf("expected ErrInvalidKeyFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseSealKey failed: %v", err)
			}
		})
	}
}
