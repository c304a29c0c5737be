package notify

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Address
		wantErr bool
	}{
		{
			name: "email",
			raw:  "alice@example.com",
			want: Address{Kind: KindEmail, Target: "alice@example.com"},
		},
		{
			name: "email with surrounding spaces",
			raw:  "  bob@example.org ",
			want: Address{Kind: KindEmail, Target: "bob@example.org"},
		},
		{
			name: "telegram chat",
			raw:  "telegram:123456",
			want: Address{Kind: KindTelegram, Target: "123456"},
		},
		{
			name: "telegram group chat",
			raw:  "telegram:-1001234567890",
			want: Address{Kind: KindTelegram, Target: "-1001234567890"},
		},
		{
			name: "amqp routing key",
			raw:  "amqp:video.updates",
			want: Address{Kind: KindAMQP, Target: "video.updates"},
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "not an email", raw: "alice", wantErr: true},
		{name: "missing domain", raw: "alice@", wantErr: true},
		{name: "telegram non-numeric", raw: "telegram:alice", wantErr: true},
		{name: "telegram empty", raw: "telegram:", wantErr: true},
		{name: "amqp empty", raw: "amqp:", wantErr: true},
		{name: "amqp with spaces", raw: "amqp:video updates", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("error = %v, want ErrInvalidAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseAddress(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestAddressStringRoundTrip(t *testing.T) {
	for _, raw := range []string{"alice@example.com", "telegram:42", "amqp:updates.eu"} {
		addr, err := ParseAddress(raw)
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", raw, err)
		}
		if got := addr.String(); got != raw {
			t.Errorf("String() = %q, want %q", got, raw)
		}
	}
}
