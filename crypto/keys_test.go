package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	encoded := key.PubKey().Address().String()
	if !strings.HasPrefix(encoded, "nhb1") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}
	raw, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(raw[:], key.PubKey().Address().Bytes()) {
		t.Fatalf("decoded bytes mismatch")
	}
	if FormatAddress(raw) != encoded {
		t.Fatalf("format mismatch: %s vs %s", FormatAddress(raw), encoded)
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	var raw [20]byte
	raw[0] = 0x01
	foreign := MustNewAddress(AddressPrefix("cosmos"), raw[:]).String()
	if _, err := ParseAddress(foreign); err == nil {
		t.Fatalf("expected prefix error")
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "   ", "nhb1notbech32", "0xdeadbeef"} {
		if _, err := ParseAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestNewAddressLength(t *testing.T) {
	if _, err := NewAddress(NHBPrefix, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected length error")
	}
}
