package protocol

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeongseonghan/iqmodem/internal/channel"
	"github.com/jeongseonghan/iqmodem/internal/logging"
	"github.com/jeongseonghan/iqmodem/internal/modem"
)

// SessionStatus represents the session state.
type SessionStatus int

const (
	StatusIdle SessionStatus = iota
	StatusTransmitting
	StatusReceiving
	StatusCompleted
	StatusError
)

// String returns the status name.
func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusTransmitting:
		return "transmitting"
	case StatusReceiving:
		return "receiving"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionEvent is sent to listeners when a trial changes state.
type SessionEvent struct {
	TrialID  string
	Status   SessionStatus
	Message  string
	Progress float64 // 0.0 to 1.0
	Result   *TrialResult
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Workers is the number of demodulation workers.
	Workers int
	// Noiseless selects an ideal channel instead of AWGN.
	Noiseless bool
	// SNRDB is the AWGN Es/N0 in dB.
	SNRDB float64
	// Seed seeds the noise generator.
	Seed int64
	// Channel overrides the channel built from Noiseless/SNRDB.
	Channel channel.Channel
}

// Burst is one modulated frame.
type Burst struct {
	Frame   []byte
	Symbols []uint
	Samples []complex128
}

// TrialResult summarizes one transmit/channel/receive loop.
type TrialResult struct {
	ID           string        `json:"id"`
	Modulation   string        `json:"modulation"`
	Noiseless    bool          `json:"noiseless"`
	SNRDB        float64       `json:"snrDb"`
	MeasuredSNR  *float64      `json:"measuredSnrDb,omitempty"`
	PayloadBytes int           `json:"payloadBytes"`
	Symbols      int           `json:"symbols"`
	SymbolErrors int           `json:"symbolErrors"`
	BitErrors    int           `json:"bitErrors"`
	SER          float64       `json:"ser"`
	BER          float64       `json:"ber"`
	FrameOK      bool          `json:"frameOk"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"durationNs"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Session runs framed bursts through a modulator, a channel and a
// demodulator. It is safe for concurrent use.
type Session struct {
	modulation  modem.Modulation
	modulator   *modem.Modulator
	demodulator *modem.Demodulator
	channel     channel.Channel
	noiseless   bool
	snrDB       float64

	mu        sync.Mutex
	status    SessionStatus
	eventChan chan SessionEvent
}

// NewSession creates a session for mod. The modulation must pack whole
// bytes: its bits per symbol must divide 8.
func NewSession(mod modem.Modulation, opts SessionOptions) (*Session, error) {
	modulator, err := modem.NewModulator(mod)
	if err != nil {
		return nil, fmt.Errorf("create modulator: %w", err)
	}
	if 8%mod.BitsPerSymbol != 0 {
		return nil, fmt.Errorf("%w: %s carries %d bits per symbol, bursts need a divisor of 8",
			modem.ErrUnsupported, mod, mod.BitsPerSymbol)
	}

	c := modulator.Constellation()
	s := &Session{
		modulation:  mod,
		modulator:   modulator,
		demodulator: modem.NewDemodulatorFor(c, opts.Workers),
		noiseless:   opts.Noiseless,
		snrDB:       opts.SNRDB,
		eventChan:   make(chan SessionEvent, 100),
	}

	switch {
	case opts.Channel != nil:
		s.channel = opts.Channel
	case opts.Noiseless:
		s.channel = channel.Ideal{}
		s.snrDB = 0
	default:
		awgn, err := channel.NewAWGN(c.AverageEnergy(), opts.SNRDB, opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("create channel: %w", err)
		}
		s.channel = awgn
	}

	return s, nil
}

// Modulation returns the session modulation.
func (s *Session) Modulation() modem.Modulation { return s.modulation }

// Constellation returns the session constellation.
func (s *Session) Constellation() *modem.Constellation { return s.modulator.Constellation() }

// Status returns the most recent session status.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events returns the event channel for monitoring trials.
func (s *Session) Events() <-chan SessionEvent {
	return s.eventChan
}

// Transmit frames payload and modulates the frame bytes.
func (s *Session) Transmit(payload []byte) (*Burst, error) {
	frame, err := NewFrame(s.modulation, payload)
	if err != nil {
		return nil, err
	}
	raw := frame.Encode()

	symbols, err := modem.Pack(raw, s.modulation.BitsPerSymbol)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	samples, err := modem.MapSymbols(symbols, s.modulator.Constellation())
	if err != nil {
		return nil, fmt.Errorf("map symbols: %w", err)
	}

	return &Burst{Frame: raw, Symbols: symbols, Samples: samples}, nil
}

// Receive demodulates samples and decodes the frame they carry. The decided
// symbols and raw bytes are returned even when the frame fails to decode.
func (s *Session) Receive(samples []complex128) (*Frame, []uint, []byte, error) {
	symbols := s.demodulator.DemapSymbols(samples)
	raw, err := modem.Unpack(symbols, s.modulation.BitsPerSymbol)
	if err != nil {
		return nil, symbols, nil, fmt.Errorf("unpack: %w", err)
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		return nil, symbols, raw, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Modulation() != s.modulation {
		return nil, symbols, raw, fmt.Errorf("frame sent with %s, session uses %s", frame.Modulation(), s.modulation)
	}
	return frame, symbols, raw, nil
}

// RunTrial transmits payload through the channel and receives it again.
// A corrupted frame is reported in the result, not as an error.
func (s *Session) RunTrial(payload []byte) (*TrialResult, error) {
	start := time.Now()
	id := uuid.NewString()

	s.setStatus(id, StatusTransmitting, "Modulating burst...", 0, nil)
	burst, err := s.Transmit(payload)
	if err != nil {
		s.setStatus(id, StatusError, fmt.Sprintf("Transmit failed: %v", err), 0, nil)
		return nil, err
	}

	received := s.channel.Apply(burst.Samples)

	s.setStatus(id, StatusReceiving, "Demodulating burst...", 0.5, nil)
	frame, symbols, raw, rxErr := s.Receive(received)

	result := &TrialResult{
		ID:           id,
		Modulation:   s.modulation.String(),
		Noiseless:    s.noiseless,
		SNRDB:        s.snrDB,
		MeasuredSNR:  finite(channel.MeasureSNR(burst.Samples, received)),
		PayloadBytes: len(payload),
		Symbols:      len(burst.Symbols),
		SymbolErrors: modem.SymbolErrors(burst.Symbols, symbols),
		BitErrors:    modem.BitErrors(burst.Frame, raw),
		FrameOK:      rxErr == nil,
		CreatedAt:    start.UTC(),
	}
	if result.Symbols > 0 {
		result.SER = float64(result.SymbolErrors) / float64(result.Symbols)
		result.BER = float64(result.BitErrors) / float64(8*len(burst.Frame))
	}
	if rxErr != nil {
		result.Error = rxErr.Error()
	} else if string(frame.Payload) != string(payload) {
		// A CRC collision would land here.
		result.FrameOK = false
		result.Error = "payload mismatch"
	}
	result.Duration = time.Since(start)

	logging.Info("session", "trial complete", logging.Fields{
		"id":      id,
		"mod":     result.Modulation,
		"symbols": result.Symbols,
		"ser":     fmt.Sprintf("%.4g", result.SER),
		"frameOk": result.FrameOK,
	})
	s.setStatus(id, StatusCompleted, "Trial complete", 1, result)
	return result, nil
}

// finite returns nil for infinite or NaN values, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func (s *Session) setStatus(trialID string, status SessionStatus, message string, progress float64, result *TrialResult) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	event := SessionEvent{
		TrialID:  trialID,
		Status:   status,
		Message:  message,
		Progress: progress,
		Result:   result,
	}
	select {
	case s.eventChan <- event:
	default:
		logging.Warnf("session", "Event channel full, dropping: %s - %s", status, message)
	}
}
