package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"time"

	"senseled/internal/config"
	"senseled/internal/display"
	"senseled/internal/frame"
	appLog "senseled/internal/log"
	"senseled/internal/player"
)

// Server is the local LED editor: it exposes the matrix canvas over JSON
// and can start animation sessions in the background.
type Server struct {
	cfg    *config.Config
	matrix *display.Matrix
	player *player.Player
	mux    *http.ServeMux

	// base outlives single requests; background sessions run under it.
	base context.Context
	wg   sync.WaitGroup
}

// NewServer constructs a new Server. Sessions started through
// /api/animate are cancelled when ctx is done.
func NewServer(ctx context.Context, cfg *config.Config, m *display.Matrix, p *player.Player) *Server {
	s := &Server{
		cfg:    cfg,
		matrix: m,
		player: p,
		mux:    http.NewServeMux(),
		base:   ctx,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Wait blocks until background animation sessions have returned.
func (s *Server) Wait() { s.wg.Wait() }

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="senseled", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves the API on cfg.Listen until ctx is done, then shuts down
// gracefully and waits for background sessions.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	if errors.Is(<-errCh, http.ErrServerClosed) {
		appLog.Info("HTTP server stopped")
	}
	return err
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/frame", s.handleFrame)
	s.mux.HandleFunc("POST /api/pixel", s.handlePixel)
	s.mux.HandleFunc("POST /api/fill", s.handleFill)
	s.mux.HandleFunc("POST /api/clear", s.handleClear)
	s.mux.HandleFunc("POST /api/animate", s.handleAnimate)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// frameResponse is the JSON response shape for /api/frame.
type frameResponse struct {
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Depth   string          `json:"depth"`
	Layout  string          `json:"layout"`
	Running bool            `json:"running"`
	Pixels  [][]frame.Color `json:"pixels"`
	Hex     [][]string      `json:"hex"`
}

// pixelRequest is the body of POST /api/pixel. Channels are in device
// units (0-31/0-63 for rgb565); Color, when set, wins and is quantised.
type pixelRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	R     uint8  `json:"r"`
	G     uint8  `json:"g"`
	B     uint8  `json:"b"`
	Color string `json:"color,omitempty"`
}

// snapshot builds the /api/frame body from the canvas.
func (s *Server) snapshot() frameResponse {
	enc := s.matrix.Encoder()
	g := s.matrix.Snapshot()

	resp := frameResponse{
		Width:   frame.Width,
		Height:  frame.Height,
		Depth:   enc.Depth.String(),
		Layout:  enc.Layout.String(),
		Running: s.player != nil && s.player.Running(),
		Pixels:  make([][]frame.Color, frame.Height),
		Hex:     make([][]string, frame.Height),
	}
	for y := range g {
		resp.Pixels[y] = append([]frame.Color(nil), g[y][:]...)
		resp.Hex[y] = make([]string, frame.Width)
		for x, c := range g[y] {
			resp.Hex[y][x] = enc.Depth.Hex(c)
		}
	}
	return resp
}

// handleFrame returns the current canvas.
func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handlePixel sets one cell and flushes the canvas.
//
// POST /api/pixel {"x":1,"y":2,"r":31,"g":0,"b":0}
// POST /api/pixel {"x":1,"y":2,"color":"#ff0000"}
func (s *Server) handlePixel(w http.ResponseWriter, r *http.Request) {
	var req pixelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.requestColor(req.R, req.G, req.B, req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.edit(w, func() (int, error) {
		if err := s.matrix.SetCell(req.X, req.Y, c); err != nil {
			return http.StatusBadRequest, err
		}
		return s.flush()
	})
}

// handleFill sets every cell to one colour and flushes.
func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req pixelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.requestColor(req.R, req.G, req.B, req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.edit(w, func() (int, error) {
		s.matrix.Fill(c)
		return s.flush()
	})
}

// handleClear blanks the canvas and the device.
func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.edit(w, func() (int, error) {
		if err := s.matrix.Clear(); err != nil {
			return http.StatusBadGateway, err
		}
		return http.StatusOK, nil
	})
}

// handleAnimate starts an animation session in the background.
//
// POST /api/animate → 202, or 409 if a session is already running.
func (s *Server) handleAnimate(w http.ResponseWriter, _ *http.Request) {
	if s.player == nil {
		writeError(w, http.StatusServiceUnavailable, "animation unavailable")
		return
	}

	// Added before Start so Run's Wait cannot miss the session.
	s.wg.Add(1)
	results, err := s.player.Start(s.base)
	if err != nil {
		s.wg.Done()
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	go func() {
		defer s.wg.Done()
		if res := <-results; res.Err != nil {
			appLog.Error("api animate: session failed", res.Err, "frames", res.Stats.Frames)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

// handlePreview renders the canvas as a scaled PNG.
//
// GET /preview.png?scale=32
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	scale := parseIntDefault(r.URL.Query().Get("scale"), 32)
	if scale < 1 {
		scale = 1
	}
	if scale > 64 {
		scale = 64
	}

	g := s.matrix.Snapshot()
	img := g.Image(s.matrix.Encoder().Depth, scale)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		appLog.Error("failed to encode preview", err)
	}
}

// edit runs fn against the canvas while no animation session can start and
// answers with the resulting canvas. fn reports the status to use on error.
func (s *Server) edit(w http.ResponseWriter, fn func() (int, error)) {
	status := http.StatusOK
	run := func() error {
		var err error
		status, err = fn()
		return err
	}

	var err error
	if s.player != nil {
		err = s.player.Exclusive(run)
	} else {
		err = run()
	}

	switch {
	case errors.Is(err, player.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		if status >= http.StatusInternalServerError {
			appLog.Error("api write failed", err)
		}
		writeError(w, status, err.Error())
	default:
		writeJSON(w, http.StatusOK, s.snapshot())
	}
}

// requestColor resolves a request colour in device units.
func (s *Server) requestColor(r, g, b uint8, hex string) (frame.Color, error) {
	d := s.matrix.Encoder().Depth
	if hex != "" {
		return frame.ParseColor(hex, d)
	}
	c := frame.Color{R: r, G: g, B: b}
	if d.Mask(c) != c {
		return frame.Color{}, errors.New("color channel exceeds " + d.String() + " range")
	}
	return c, nil
}

// flush writes the canvas to the device.
func (s *Server) flush() (int, error) {
	if err := s.matrix.Flush(); err != nil {
		return http.StatusBadGateway, err
	}
	return http.StatusOK, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
