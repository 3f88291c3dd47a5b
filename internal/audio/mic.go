package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// SampleRate is the capture rate the whole pipeline runs at.
const SampleRate = 16000

// Init has to be called once before any Mic is opened, Terminate when the
// process is done with audio.
func Init() error      { return portaudio.Initialize() }
func Terminate() error { return portaudio.Terminate() }

// Mic owns the default input stream for the lifetime of one listening
// session. Frames are delivered on a channel from a dedicated reader
// goroutine; a read failure (device revoked or unplugged) is reported once
// on Errs and the frame channel is closed. Close releases the stream on
// every path.
type Mic struct {
	stream *portaudio.Stream
	buf    []float32

	frames chan []float32
	errs   chan error
	stop   chan struct{}

	closeOnce sync.Once
	done      sync.WaitGroup
}

// OpenMic opens the default capture device, mono at SampleRate, reading
// frameSize samples at a time.
func OpenMic(frameSize int) (*Mic, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}

	m := &Mic{
		stream: stream,
		buf:    buf,
		frames: make(chan []float32, 8),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	m.done.Add(1)
	go m.readLoop()
	return m, nil
}

func (m *Mic) readLoop() {
	defer m.done.Done()
	defer close(m.frames)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			select {
			case m.errs <- fmt.Errorf("mic read: %w", err):
			default:
			}
			return
		}

		frame := make([]float32, len(m.buf))
		copy(frame, m.buf)

		select {
		case m.frames <- frame:
		case <-m.stop:
			return
		}
	}
}

// Frames yields captured frames until the mic is closed or fails.
func (m *Mic) Frames() <-chan []float32 { return m.frames }

// Errs reports at most one fatal capture error.
func (m *Mic) Errs() <-chan error { return m.errs }

// Close stops the reader and releases the device. Safe to call more than
// once and from any goroutine.
func (m *Mic) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		// Abort unblocks a reader stuck in Read.
		m.stream.Abort()
		m.done.Wait()
		m.stream.Close()
	})
}
