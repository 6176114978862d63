package audio

import (
	"fmt"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// probeDuration is how long the trial stream runs before start is allowed.
const probeDuration = 50 * time.Millisecond

// Probe opens a short trial record stream to verify the device can be
// captured from right now. Failures are classified into ErrDeviceBusy
// (another process holds the device) versus ErrDeviceUnavailable.
func Probe(device Device, sampleRate int) error {
	client, err := newPulseClient()
	if err != nil {
		return classifyDeviceError(err)
	}
	defer client.Close()

	source, err := client.SourceByID(device.ID)
	if err != nil {
		return fmt.Errorf("%w: resolve source %q: %v", ErrDeviceUnavailable, device.ID, err)
	}

	sink := pulse.NewWriter(writerFunc(func(b []byte) (int, error) {
		return len(b), nil
	}), pulseproto.FormatInt16LE)

	stream, err := client.NewRecord(
		sink,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordMediaName("voxpipe probe"),
	)
	if err != nil {
		return classifyDeviceError(err)
	}

	stream.Start()
	time.Sleep(probeDuration)
	stream.Stop()
	stream.Close()
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
