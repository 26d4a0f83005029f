package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hidject/internal/inject"
	"hidject/internal/protocol"
)

// describeFrame classifies a sniffed frame and decodes it as a mouse
// capture when it is long enough.
func describeFrame(v protocol.Variant, frame []byte) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "length:   %d\n", len(frame))
	fmt.Fprintf(&b, "type:     %s\n", protocol.Classify(frame))
	if len(frame) > 0 {
		fmt.Fprintf(&b, "checksum: %v\n", protocol.ValidChecksum(frame))
	}
	if len(frame) < v.CaptureLen() {
		return b.String(), nil
	}
	a, err := protocol.DecodeMouse(v, frame)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "mouse:    %s\n", raw)
	return b.String(), nil
}

// encodeAction renders an action as a capture, a USB boot report or a
// finalized radio frame.
func encodeAction(v protocol.Variant, a protocol.MouseAction, capture, usb bool) ([]byte, error) {
	switch {
	case capture:
		return protocol.EncodeCapture(v, a)
	case usb:
		return protocol.EncodeUSBMouse(a), nil
	}
	frame, err := protocol.EncodeMouse(v, a)
	if err != nil {
		return nil, err
	}
	protocol.Finalize(frame)
	return frame, nil
}

func newDecodeCmd() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Classify a sniffed frame and decode mouse captures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := protocol.ParseVariant(variant)
			if err != nil {
				return err
			}
			frame, err := hex.DecodeString(strings.ReplaceAll(strings.Join(args, ""), ":", ""))
			if err != nil {
				return fmt.Errorf("frame must be hex: %w", err)
			}
			out, err := describeFrame(v, frame)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "classic", "Frame family: classic or fast")
	return cmd
}

func newEncodeCmd() *cobra.Command {
	var (
		variant      string
		a            protocol.MouseAction
		x, y, scroll int
		capture, usb bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a mouse action as a radio frame, USB report or capture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := protocol.ParseVariant(variant)
			if err != nil {
				return err
			}
			a.XVelocity = int16(x)
			a.YVelocity = int16(y)
			a.ScrollVertical = int8(scroll)
			out, err := encodeAction(v, a, capture, usb)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "classic", "Frame family: classic or fast")
	cmd.Flags().IntVar(&x, "x", 0, "Horizontal velocity")
	cmd.Flags().IntVar(&y, "y", 0, "Vertical velocity")
	cmd.Flags().IntVar(&scroll, "scroll", 0, "Vertical scroll")
	cmd.Flags().BoolVar(&a.LeftDown, "left", false, "Left button down")
	cmd.Flags().BoolVar(&a.RightDown, "right", false, "Right button down")
	cmd.Flags().BoolVar(&capture, "capture", false, "Emit a capture suitable for 'enqueue mouse'")
	cmd.Flags().BoolVar(&usb, "usb", false, "Emit a USB boot mouse report")
	return cmd
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the injection state machine as a Graphviz digraph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dot, err := inject.StateGraph()
			if err != nil {
				return err
			}
			fmt.Println(dot)
			return nil
		},
	}
}
