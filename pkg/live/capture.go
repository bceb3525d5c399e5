package live

import (
	"io"

	"github.com/vango-go/vai-assist/pkg/core"
)

// capture pumps fixed-duration microphone frames to the transport until the
// cycle ends. Frames read while muted are dropped, not buffered. Closing the
// microphone unblocks the read and ends the loop.
func (s *Session) capture(a *activeConn) {
	frame := make([]byte, DefaultInputAudioConfig().BytesFor(s.config.CaptureFrameDuration))

	for {
		if _, err := io.ReadFull(a.mic, frame); err != nil {
			if !s.isCurrent(a) {
				return
			}
			s.stopCycle(a, core.NewDeviceError("microphone stream ended", err))
			return
		}
		if s.Muted() {
			continue
		}
		if err := a.transport.SendAudio(frame); err != nil {
			// Transport is going away; the run loop owns that teardown.
			s.logger.Debug("audio frame dropped", "error", err)
		}
	}
}
