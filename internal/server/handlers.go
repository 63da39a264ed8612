package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeongseonghan/iqmodem/internal/config"
	"github.com/jeongseonghan/iqmodem/internal/logging"
	"github.com/jeongseonghan/iqmodem/internal/modem"
	"github.com/jeongseonghan/iqmodem/internal/protocol"
	"github.com/jeongseonghan/iqmodem/internal/storage"
)

// Version is reported by the status endpoint.
var Version = "0.1.0"

// IQ is one complex sample in JSON form.
type IQ struct {
	I float64 `json:"i"`
	Q float64 `json:"q"`
}

// ConstellationPoint describes one labelled point.
type ConstellationPoint struct {
	Index uint    `json:"index"`
	Label string  `json:"label"`
	I     float64 `json:"i"`
	Q     float64 `json:"q"`
}

// Handlers holds the HTTP API handlers.
type Handlers struct {
	cfg     *config.Config
	store   *storage.TrialStore
	wsHub   *WSHub
	started time.Time

	mu         sync.Mutex
	trialCount int64
	lastResult *protocol.TrialResult
}

// NewHandlers creates new API handlers. store may be nil, in which case
// trials are run but not persisted.
func NewHandlers(cfg *config.Config, store *storage.TrialStore) *Handlers {
	return &Handlers{
		cfg:     cfg,
		store:   store,
		wsHub:   NewWSHub(),
		started: time.Now(),
	}
}

// Hub returns the websocket hub.
func (h *Handlers) Hub() *WSHub { return h.wsHub }

// statusFor maps an error to the HTTP status to report it with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modem.ErrInvalidArgument),
		errors.Is(err, modem.ErrUnsupported),
		errors.Is(err, protocol.ErrPayloadSize):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrTrialNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// modulation returns the named modulation, or the configured default when
// name is empty.
func (h *Handlers) modulation(name string) (modem.Modulation, error) {
	if name == "" {
		name = h.cfg.Modem.Modulation
	}
	return modem.ParseModulation(name)
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("websocket", "upgrade error: %v", err)
		return
	}

	h.wsHub.AddClient(conn)

	// Read until the client goes away.
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// HandleConstellation returns the labelled points of a modulation.
func (h *Handlers) HandleConstellation(c *gin.Context) {
	mod, err := h.modulation(c.Query("modulation"))
	if err != nil {
		respondError(c, err)
		return
	}
	cons, err := mod.Constellation()
	if err != nil {
		respondError(c, err)
		return
	}

	points := make([]ConstellationPoint, 0, cons.Size())
	for i, p := range cons.Points() {
		points = append(points, ConstellationPoint{
			Index: uint(i),
			Label: fmt.Sprintf("%0*b", cons.BitsPerSymbol(), i),
			I:     real(p),
			Q:     imag(p),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"modulation":    cons.Name(),
		"scheme":        cons.Scheme().String(),
		"bitsPerSymbol": cons.BitsPerSymbol(),
		"size":          cons.Size(),
		"minDistance":   cons.MinDistance(),
		"averageEnergy": cons.AverageEnergy(),
		"points":        points,
	})
}

// HandleModulate converts bytes into samples.
func (h *Handlers) HandleModulate(c *gin.Context) {
	var req struct {
		Modulation string `json:"modulation"`
		Data       []byte `json:"data"` // base64 in JSON
		Text       string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mod, err := h.modulation(req.Modulation)
	if err != nil {
		respondError(c, err)
		return
	}
	cons, err := mod.Constellation()
	if err != nil {
		respondError(c, err)
		return
	}

	data := req.Data
	if len(data) == 0 {
		data = []byte(req.Text)
	}

	symbols, err := modem.Pack(data, cons.BitsPerSymbol())
	if err != nil {
		respondError(c, err)
		return
	}
	samples, err := modem.MapSymbols(symbols, cons)
	if err != nil {
		respondError(c, err)
		return
	}

	iq := make([]IQ, len(samples))
	for i, s := range samples {
		iq[i] = IQ{I: real(s), Q: imag(s)}
	}

	c.JSON(http.StatusOK, gin.H{
		"modulation": cons.Name(),
		"symbols":    symbols,
		"samples":    iq,
		"count":      len(iq),
	})
}

// HandleDemodulate decides samples and unpacks them into bytes.
func (h *Handlers) HandleDemodulate(c *gin.Context) {
	var req struct {
		Modulation string `json:"modulation"`
		Samples    []IQ   `json:"samples"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mod, err := h.modulation(req.Modulation)
	if err != nil {
		respondError(c, err)
		return
	}
	demod, err := modem.NewDemodulator(mod, h.cfg.Modem.Workers)
	if err != nil {
		respondError(c, err)
		return
	}

	samples := make([]complex128, len(req.Samples))
	for i, s := range req.Samples {
		samples[i] = complex(s.I, s.Q)
	}

	symbols := demod.DemapSymbols(samples)
	data, err := modem.Unpack(symbols, mod.BitsPerSymbol)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"modulation": mod.String(),
		"symbols":    symbols,
		"data":       data,
		"text":       string(data),
	})
}

// HandleRunTrial frames a message, passes it through the channel and
// reports how it was received.
func (h *Handlers) HandleRunTrial(c *gin.Context) {
	var req struct {
		Modulation string   `json:"modulation"`
		Message    string   `json:"message" binding:"required"`
		SNRDB      *float64 `json:"snrDb"`
		Noiseless  *bool    `json:"noiseless"`
		Seed       *int64   `json:"seed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mod, err := h.modulation(req.Modulation)
	if err != nil {
		respondError(c, err)
		return
	}

	h.mu.Lock()
	h.trialCount++
	n := h.trialCount
	h.mu.Unlock()

	opts := protocol.SessionOptions{
		Workers:   h.cfg.Modem.Workers,
		Noiseless: h.cfg.Channel.Noiseless,
		SNRDB:     h.cfg.Channel.SNRDB,
		// Successive trials draw different noise unless a seed is given.
		Seed: h.cfg.Channel.Seed + n,
	}
	if req.SNRDB != nil {
		opts.SNRDB = *req.SNRDB
		opts.Noiseless = false
	}
	if req.Noiseless != nil {
		opts.Noiseless = *req.Noiseless
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}

	session, err := protocol.NewSession(mod, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := session.RunTrial([]byte(req.Message))
	h.wsHub.ForwardEvents(session.Events())
	if err != nil {
		h.wsHub.BroadcastStatus("error", fmt.Sprintf("Trial failed: %v", err))
		respondError(c, err)
		return
	}

	if h.store != nil {
		if err := h.store.SaveTrial(result); err != nil {
			logging.Error("server", "failed to store trial", logging.Fields{
				"id":    result.ID,
				"error": err.Error(),
			})
			respondError(c, err)
			return
		}
	}

	h.mu.Lock()
	h.lastResult = result
	h.mu.Unlock()

	c.JSON(http.StatusCreated, result)
}

// HandleGetTrials returns stored trials, newest first.
func (h *Handlers) HandleGetTrials(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trial storage disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	trials, err := h.store.ListTrials(limit, c.Query("modulation"))
	if err != nil {
		respondError(c, err)
		return
	}
	if trials == nil {
		trials = []*protocol.TrialResult{}
	}

	c.JSON(http.StatusOK, gin.H{
		"trials": trials,
		"count":  len(trials),
	})
}

// HandleGetTrial returns one stored trial.
func (h *Handlers) HandleGetTrial(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trial storage disabled"})
		return
	}

	result, err := h.store.GetTrial(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleGetStats returns per-modulation aggregates.
func (h *Handlers) HandleGetStats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trial storage disabled"})
		return
	}

	stats, err := h.store.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	if stats == nil {
		stats = []storage.ModulationStats{}
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// HandleStatus returns server status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	h.mu.Lock()
	trials := h.trialCount
	last := h.lastResult
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":     "running",
		"version":    Version,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"modulation": h.cfg.Modem.Modulation,
		"snrDb":      h.cfg.Channel.SNRDB,
		"noiseless":  h.cfg.Channel.Noiseless,
		"trials":     trials,
		"lastTrial":  last,
		"wsClients":  h.wsHub.ClientCount(),
	})
}
