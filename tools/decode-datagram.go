//go:build ignore

// Decode-datagram pretty-prints a single wiwo protocol datagram. Feed it
// hex copied out of a packet capture (separators are tolerated) or a file
// holding the raw bytes, and it annotates the frame header and whatever
// payload layout the command code implies.
//
//	go run tools/decode-datagram.go 68 64 00 06 71 61
//	go run tools/decode-datagram.go -f socket-reply.bin
package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/halloy/wiwo/internal/protocol"
)

func main() {
	data, err := readInput(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== WiWo Datagram Decoder ===")
	fmt.Println()
	fmt.Printf("Raw datagram (%d bytes):\n", len(data))
	dump(data)
	fmt.Println()

	printHeader(data)

	frame, err := protocol.Decode(data)
	if err != nil {
		fmt.Println()
		fmt.Printf("Decode failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	printPayload(frame)
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		usage()
	}
	if args[0] == "-f" {
		if len(args) != 2 {
			usage()
		}
		return os.ReadFile(args[1])
	}

	// Hex dumps arrive with whatever separators the capture tool used.
	raw := strings.Join(args, "")
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', ',', '\t', '\n', '\r':
			return -1
		}
		return r
	}, raw)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("not valid hex: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty datagram")
	}
	return data, nil
}

func usage() {
	fmt.Println("Usage: decode-datagram <hex-bytes>")
	fmt.Println("       decode-datagram -f <capture-file>")
	fmt.Println()
	fmt.Println("Example: decode-datagram 68 64 00 06 71 61")
	fmt.Println("         decode-datagram -f learn-capture.bin")
	os.Exit(1)
}

// printHeader walks the fixed six-byte prefix by hand so that truncated or
// corrupted datagrams still get as much annotation as the bytes allow.
func printHeader(data []byte) {
	fmt.Println("Frame header:")
	if len(data) < 2 {
		fmt.Println("  too short for the magic bytes")
		return
	}
	verdict := "ok (\"hd\")"
	if data[0] != protocol.Magic[0] || data[1] != protocol.Magic[1] {
		verdict = fmt.Sprintf("BAD, expected %02x %02x", protocol.Magic[0], protocol.Magic[1])
	}
	fmt.Printf("  [0-1]  magic    %02x %02x  %s\n", data[0], data[1], verdict)

	if len(data) < 4 {
		fmt.Println("  [2-3]  length   missing")
		return
	}
	declared := binary.BigEndian.Uint16(data[2:4])
	match := "matches"
	if int(declared) != len(data) {
		match = fmt.Sprintf("MISMATCH, %d bytes received", len(data))
	}
	fmt.Printf("  [2-3]  length   %d (big-endian, counts the whole frame)  %s\n", declared, match)

	if len(data) < protocol.HeaderSize {
		fmt.Println("  [4-5]  command  missing")
		return
	}
	cmd := protocol.Command(binary.BigEndian.Uint16(data[4:6]))
	fmt.Printf("  [4-5]  command  %s\n", cmd)
}

// printPayload interprets the payload according to the command code.
// Offsets below are relative to the payload, not the datagram; add the
// six header bytes to line them up with the raw dump.
func printPayload(f *protocol.Frame) {
	p := f.Payload
	fmt.Printf("Payload (%d bytes):\n", len(p))

	switch f.Command {
	case protocol.CmdDiscover:
		if len(p) == 0 {
			fmt.Println("  Identification request. Broadcast during a scan, unicast for")
			fmt.Println("  a directed probe; replies reuse the qa code.")
			return
		}
		reply, err := protocol.ParseDiscoverReply(f)
		if err != nil {
			fmt.Printf("  Unrecognized qa payload: %v\n", err)
			return
		}
		fmt.Println("  Identification reply:")
		fmt.Println("    [0]      lead byte  00")
		fmt.Printf("    [1-6]    mac        %s\n", reply.MAC)
		fmt.Println("    [7-12]   spaces")
		fmt.Printf("    [13-18]  mac (rev)  %s\n", reply.MAC.Reversed())
		fmt.Println("    [19-24]  spaces")
		fmt.Printf("    [25-30]  model      %s (%s)\n", reply.Model, kindWord(reply.Model))
		fmt.Printf("    [31-34]  clock      %d (little-endian)\n", reply.Clock)
		fmt.Printf("    [35]     state      %s (meaningful for sockets only)\n", stateWord(reply.On))

	case protocol.CmdSubscribe:
		if len(p) == 24 {
			fmt.Println("  Subscribe request:")
			printIdentityBlock(p)
			return
		}
		on, err := protocol.ParseStateAck(f)
		if err != nil {
			fmt.Printf("  Unrecognized cl payload: %v\n", err)
			return
		}
		fmt.Println("  Subscribe ack:")
		fmt.Printf("    [0-5]   mac    %s\n", macWord(p, 0))
		fmt.Printf("    [%d]    state  %s (the last byte answers the state poll)\n", len(p)-1, stateWord(on))

	case protocol.CmdSetState:
		on, err := protocol.ParseStateAck(f)
		if err != nil {
			fmt.Printf("  Unrecognized dc payload: %v\n", err)
			return
		}
		fmt.Println("  Set-state frame (request and ack share this layout):")
		fmt.Printf("    [0-5]    mac     %s\n", macWord(p, 0))
		fmt.Println("    [6-11]   spaces")
		fmt.Println("    [12-15]  zeros")
		fmt.Printf("    [16]     state   %s\n", stateWord(on))

	case protocol.CmdStateEvent:
		mac, on, err := protocol.ParseStateEvent(f)
		if err != nil {
			fmt.Printf("  Unrecognized sf payload: %v\n", err)
			return
		}
		fmt.Println("  Unsolicited state event:")
		fmt.Printf("    [0-5]  mac    %s\n", mac)
		fmt.Printf("    [%d]   state  %s\n", len(p)-1, stateWord(on))

	case protocol.CmdLearn:
		printLearn(f)

	case protocol.CmdEmit:
		if len(p) < 18 {
			fmt.Printf("  ic payload too short: %d bytes, need at least 18\n", len(p))
			return
		}
		fmt.Println("  Emit request (the device sends no acknowledgement):")
		fmt.Printf("    [0-5]    mac     %s\n", macWord(p, 0))
		fmt.Println("    [6-11]   spaces")
		fmt.Printf("    [12-15]  marker  %02x %02x %02x %02x\n", p[12], p[13], p[14], p[15])
		fmt.Printf("    [16-17]  salt    %02x %02x (random per send)\n", p[16], p[17])
		fmt.Printf("    [18-]    signal  %d bytes\n", len(p)-18)

	case protocol.CmdUnsubscribe:
		fmt.Println("  Unsubscribe request (best-effort, no ack expected):")
		printIdentityBlock(p)

	default:
		fmt.Println("  No layout known for this command code; see the raw dump above.")
	}
}

// printLearn untangles the three frames that share the ls code: the
// request that arms learning mode, the short ack, and the long frame
// carrying the captured signal.
func printLearn(f *protocol.Frame) {
	p := f.Payload
	switch {
	case len(p) == 18 && p[12] == 0x01:
		fmt.Println("  Enter-learn request:")
		fmt.Printf("    [0-5]    mac     %s\n", macWord(p, 0))
		fmt.Println("    [6-11]   spaces")
		fmt.Println("    [12-13]  mode    01 00")
		fmt.Println("    [14-17]  zeros")
	case len(p) <= 12:
		fmt.Println("  Learn ack. The device is now waiting for a button press; the")
		fmt.Println("  captured signal arrives in a later, longer ls frame.")
		fmt.Printf("    [0-5]   mac  %s\n", macWord(p, 0))
	default:
		mac, err := protocol.MACFromBytes(p[:6])
		if err != nil {
			fmt.Printf("  Unrecognized ls payload: %v\n", err)
			return
		}
		signal, err := protocol.ParseCaptureReply(f, mac)
		if err != nil {
			fmt.Printf("  Unrecognized ls payload: %v\n", err)
			return
		}
		fmt.Println("  Signal capture:")
		fmt.Printf("    [0-5]    mac     %s\n", mac)
		fmt.Println("    [6-11]   spaces")
		fmt.Println("    [12-15]  zeros")
		fmt.Printf("    [16-17]  length  %d (little-endian)\n", binary.LittleEndian.Uint16(p[16:18]))
		fmt.Printf("    [18-]    signal  %d bytes:\n", len(signal))
		dump(signal)
	}
}

func printIdentityBlock(p []byte) {
	if len(p) < 24 {
		fmt.Printf("    identity block too short: %d bytes, need 24\n", len(p))
		return
	}
	fmt.Printf("    [0-5]    mac        %s\n", macWord(p, 0))
	fmt.Println("    [6-11]   spaces")
	fmt.Printf("    [12-17]  mac (rev)  %s\n", macWord(p, 12))
	fmt.Println("    [18-23]  spaces")
}

func macWord(p []byte, off int) string {
	mac, err := protocol.MACFromBytes(p[off : off+6])
	if err != nil {
		return "??"
	}
	return mac.String()
}

func kindWord(model string) string {
	switch {
	case strings.HasPrefix(model, "SOC"):
		return "socket"
	case strings.HasPrefix(model, "IRD"):
		return "blaster"
	default:
		return "unknown kind"
	}
}

func stateWord(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func dump(data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		var hexCol, asciiCol strings.Builder
		for i, b := range data[off:end] {
			if i == 8 {
				hexCol.WriteByte(' ')
			}
			fmt.Fprintf(&hexCol, "%02x ", b)
			if b >= 0x20 && b < 0x7f {
				asciiCol.WriteByte(b)
			} else {
				asciiCol.WriteByte('.')
			}
		}
		fmt.Printf("  %04x  %-49s %s\n", off, hexCol.String(), asciiCol.String())
	}
}
