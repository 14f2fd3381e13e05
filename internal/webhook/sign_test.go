package webhook

import "testing"

func TestSignIsDeterministic(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment.created"}`)
	sig1 := Sign("whsec_test", body)
	sig2 := Sign("whsec_test", body)
	if sig1 != sig2 {
		t.Errorf("Sign is not deterministic: %q != %q", sig1, sig2)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		body   []byte
	}{
		{"simple payload", "whsec_test", []byte(`{"id":"evt_1"}`)},
		{"empty body", "whsec_test", []byte{}},
		{"large payload", "whsec_test", []byte(`{"id":"evt_2","data":{"amount":100000,"currency":"usd"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := SignatureHeader(tt.secret, tt.body)
			if !Verify(tt.secret, tt.body, header) {
				t.Errorf("Verify failed for its own SignatureHeader output")
			}
		})
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	header := SignatureHeader("whsec_correct", body)
	if Verify("whsec_wrong", body, header) {
		t.Error("Verify accepted a signature made with a different secret")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	secret := "whsec_test"
	header := SignatureHeader(secret, []byte(`{"id":"evt_1"}`))
	if Verify(secret, []byte(`{"id":"evt_2"}`), header) {
		t.Error("Verify accepted a signature for a tampered body")
	}
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing prefix", "deadbeef"},
		{"empty header", ""},
		{"prefix only", "sha256="},
	}

	body := []byte(`{"id":"evt_1"}`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify("whsec_test", body, tt.header) {
				t.Errorf("Verify accepted malformed header %q", tt.header)
			}
		})
	}
}
