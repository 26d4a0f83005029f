package inject

import (
	"time"

	"hidject/internal/protocol"
)

// Inter-frame delays. Classic receivers drop host reports when the radio
// side is paced faster than 8ms.
const (
	USBTxDelay     = 1 * time.Millisecond
	FastTxDelay    = 1 * time.Millisecond
	ClassicTxDelay = 8 * time.Millisecond
)

// DefaultRetransmitCeiling is the number of failed transmissions within a
// task that fails it.
const DefaultRetransmitCeiling = 10

// DefaultTriggerDelay is the pause between the LED trigger and the first frame.
const DefaultTriggerDelay = time.Second

// TxDelay returns the inter-frame delay for a transport and frame family.
func TxDelay(usb bool, v protocol.Variant) time.Duration {
	if usb {
		return USBTxDelay
	}
	if v == protocol.FastPolling {
		return FastTxDelay
	}
	return ClassicTxDelay
}
