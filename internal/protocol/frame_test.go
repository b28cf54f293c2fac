package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		want    []byte
		wantErr bool
	}{
		{
			name: "discovery request",
			cmd:  CmdDiscover,
			want: []byte{0x68, 0x64, 0x00, 0x06, 0x71, 0x61},
		},
		{
			name:    "subscribe with identity payload",
			cmd:     CmdSubscribe,
			payload: SubscribePayload(MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e}),
			want: []byte{
				0x68, 0x64, // magic
				0x00, 0x1e, // total length 30
				0x63, 0x6c, // "cl"
				0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e,
				0x20, 0x20, 0x20, 0x20, 0x20, 0x20,
				0x2e, 0x1d, 0x8d, 0x23, 0xdf, 0xac,
				0x20, 0x20, 0x20, 0x20, 0x20, 0x20,
			},
		},
		{
			name:    "single byte payload",
			cmd:     CmdSetState,
			payload: []byte{0x01},
			want:    []byte{0x68, 0x64, 0x00, 0x07, 0x64, 0x63, 0x01},
		},
		{
			name:    "payload beyond frame ceiling",
			cmd:     CmdEmit,
			payload: make([]byte, MaxFrameSize),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cmd, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
		verify  func(t *testing.T, f *Frame)
	}{
		{
			name: "discovery request frame",
			data: []byte{0x68, 0x64, 0x00, 0x06, 0x71, 0x61},
			verify: func(t *testing.T, f *Frame) {
				if f.Command != CmdDiscover {
					t.Errorf("command = %s, want %s", f.Command, CmdDiscover)
				}
				if len(f.Payload) != 0 {
					t.Errorf("payload length = %d, want 0", len(f.Payload))
				}
			},
		},
		{
			name: "frame with payload",
			data: []byte{0x68, 0x64, 0x00, 0x09, 0x64, 0x63, 0xaa, 0xbb, 0xcc},
			verify: func(t *testing.T, f *Frame) {
				if f.Command != CmdSetState {
					t.Errorf("command = %s, want %s", f.Command, CmdSetState)
				}
				if !bytes.Equal(f.Payload, []byte{0xaa, 0xbb, 0xcc}) {
					t.Errorf("payload = % x", f.Payload)
				}
			},
		},
		{
			name: "unknown command code passes through",
			data: []byte{0x68, 0x64, 0x00, 0x07, 0x7a, 0x7a, 0x01},
			verify: func(t *testing.T, f *Frame) {
				if uint16(f.Command) != 0x7a7a {
					t.Errorf("command = 0x%04x, want 0x7a7a", uint16(f.Command))
				}
			},
		},
		{
			name:    "wrong magic",
			data:    []byte{0x12, 0x34, 0x00, 0x06, 0x71, 0x61},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "wrong magic with short frame",
			data:    []byte{0x00, 0x00},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "empty datagram",
			data:    nil,
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "one byte",
			data:    []byte{0x68},
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "magic only",
			data:    []byte{0x68, 0x64},
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "declared length exceeds received bytes",
			data:    []byte{0x68, 0x64, 0x00, 0x0a, 0x71, 0x61, 0x01},
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "declared length below header size",
			data:    []byte{0x68, 0x64, 0x00, 0x04, 0x71, 0x61},
			wantErr: ErrMalformedFrame,
		},
		{
			name:    "trailing bytes beyond declared length",
			data:    []byte{0x68, 0x64, 0x00, 0x06, 0x71, 0x61, 0xff},
			wantErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, f)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x00},
		{0x01, 0x02, 0x03},
		SubscribePayload(MAC{0xac, 0xcf, 0x43, 0x78, 0xef, 0xdc}),
		bytes.Repeat([]byte{0x5a}, 300),
	}
	commands := []Command{CmdDiscover, CmdSubscribe, CmdSetState, CmdLearn, CmdEmit, CmdUnsubscribe, Command(0x7a7a)}

	for _, cmd := range commands {
		for _, payload := range payloads {
			data, err := Encode(cmd, payload)
			if err != nil {
				t.Fatalf("Encode(%s, %d bytes) error = %v", cmd, len(payload), err)
			}
			f, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode(Encode(%s, %d bytes)) error = %v", cmd, len(payload), err)
			}
			if f.Command != cmd {
				t.Errorf("command = %s, want %s", f.Command, cmd)
			}
			if !bytes.Equal(f.Payload, payload) {
				t.Errorf("payload = % x, want % x", f.Payload, payload)
			}
		}
	}
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CmdDiscover, "qa (0x7161)"},
		{CmdSubscribe, "cl (0x636c)"},
		{CmdSetState, "dc (0x6463)"},
		{CmdStateEvent, "sf (0x7366)"},
		{CmdLearn, "ls (0x6c73)"},
		{CmdEmit, "ic (0x6963)"},
		{CmdUnsubscribe, "us (0x7573)"},
		{Command(0x0102), "0x0102"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	data, _ := Encode(CmdSubscribe, SubscribePayload(MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Decode(data)
	}
}

func BenchmarkEncode(b *testing.B) {
	payload := SubscribePayload(MAC{0xac, 0xdf, 0x23, 0x8d, 0x1d, 0x2e})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Encode(CmdSubscribe, payload)
	}
}
