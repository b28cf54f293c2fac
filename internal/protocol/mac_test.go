package protocol

import "testing"

func TestParseMAC(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    MAC
		wantErr bool
	}{
		{
			name: "colon separated",
			in:   "ac:df:23:8d:1d:2e",
			want: MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e},
		},
		{
			name: "dash separated",
			in:   "ac-cf-43-78-ef-dc",
			want: MAC{0xac, 0xcf, 0x43, 0x78, 0xef, 0xdc},
		},
		{
			name: "upper case",
			in:   "AC:DF:23:8D:1D:2E",
			want: MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e},
		},
		{
			name:    "not a mac",
			in:      "kitchen-socket",
			wantErr: true,
		},
		{
			name:    "eight byte infiniband form",
			in:      "00:00:00:00:fe:80:00:00",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMAC(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMAC(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMAC(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMAC_Reversed(t *testing.T) {
	m := MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e}
	want := MAC{0x2e, 0x1d, 0x8d, 0x23, 0xdf, 0xac}

	if got := m.Reversed(); got != want {
		t.Errorf("Reversed() = %v, want %v", got, want)
	}
	if got := m.Reversed().Reversed(); got != m {
		t.Errorf("double reverse = %v, want %v", got, m)
	}
}

func TestMAC_String(t *testing.T) {
	m := MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e}
	if got := m.String(); got != "ac:df:23:8d:1d:2e" {
		t.Errorf("String() = %q, want %q", got, "ac:df:23:8d:1d:2e")
	}

	parsed, err := ParseMAC(m.String())
	if err != nil {
		t.Fatalf("ParseMAC(String()) error = %v", err)
	}
	if parsed != m {
		t.Errorf("round trip = %v, want %v", parsed, m)
	}
}

func TestMACFromBytes(t *testing.T) {
	if _, err := MACFromBytes([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for short slice")
	}

	src := []byte{0xac, 0xcf, 0x43, 0x78, 0xef, 0xdc}
	m, err := MACFromBytes(src)
	if err != nil {
		t.Fatalf("MACFromBytes() error = %v", err)
	}
	src[0] = 0xff
	if m[0] != 0xac {
		t.Error("MAC should copy, not alias, the source slice")
	}
}
