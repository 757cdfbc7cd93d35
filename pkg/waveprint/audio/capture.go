package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Record captures mono 16-bit audio from the default input device for
// the given duration and returns it as normalized floats. The context
// cancels the recording early; samples captured so far are returned.
func Record(ctx context.Context, seconds int, sampleRate int) ([]float64, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)

	var (
		mu       sync.Mutex
		captured []float64
	)

	onRecvFrames := func(_, pSample []byte, frameCount uint32) {
		// pSample is reused by the device; convert before returning.
		mu.Lock()
		for i := 0; i+1 < len(pSample); i += 2 {
			v := int16(pSample[i]) | int16(pSample[i+1])<<8
			captured = append(captured, float64(v)/32768.0)
		}
		mu.Unlock()
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	select {
	case <-time.After(time.Duration(seconds) * time.Second):
	case <-ctx.Done():
	}
	_ = device.Stop()

	mu.Lock()
	defer mu.Unlock()
	return captured, nil
}
