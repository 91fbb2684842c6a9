// Package lsp bridges one websocket connection to an external language
// server subprocess speaking the Content-Length framed JSON-RPC wire format.
package lsp

import (
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/protocol"
)

// State is the lifecycle of one tooling session.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateReady
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Emitter delivers tooling output to the owning connection.
type Emitter interface {
	Emit(msgType string, payload any)
}

// rpcMessage is the shape shared by requests, responses and notifications.
// Raw fields pass bodies through without re-encoding their contents.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type pendingCall struct {
	clientID json.RawMessage
	timer    *time.Timer
}

// Session owns one language server subprocess. Requests from the client get
// a session-generated id before forwarding; responses are mapped back to the
// client's id. The handshake (initialize, initialized, didOpen) is driven
// here, and nothing is forwarded until it completes.
type Session struct {
	mu      sync.Mutex
	state   State
	emit    Emitter
	timeout time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	wmu    sync.Mutex
	framer Framer

	nextID  int64
	initID  int64
	pending map[int64]*pendingCall

	language string
	fileName string
	content  string
}

func NewSession(emit Emitter, timeout time.Duration) *Session {
	return &Session{
		state:   StateIdle,
		emit:    emit,
		timeout: timeout,
		pending: make(map[int64]*pendingCall),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) debug(msg string) {
	s.emit.Emit(protocol.TypeLspDebug, protocol.LspDebug{Message: msg})
}

// Start spawns the language server for the given tag and begins the
// handshake. An unknown tag leaves the session idle; a spawn failure is
// terminal and reported once.
func (s *Session) Start(language, fileName, content string) {
	sc, ok := LookupServer(language)
	if !ok {
		log.Warn().Str("module", "lsp").Str("language", language).Msg("unsupported language")
		s.debug("Unsupported language for LSP: " + language)
		return
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.debug("session already started")
		return
	}

	cmd := exec.Command(sc.Cmd, sc.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.failLocked(sc.Cmd, err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.failLocked(sc.Cmd, err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.failLocked(sc.Cmd, err)
		return
	}
	if err := cmd.Start(); err != nil {
		s.failLocked(sc.Cmd, err)
		return
	}

	s.cmd = cmd
	s.stdin = stdin
	s.state = StateStarting
	s.language = language
	s.fileName = fileName
	s.content = content
	s.mu.Unlock()

	log.Info().Str("module", "lsp").Str("language", language).Str("cmd", sc.Cmd).Msg("session started")
	go s.readLoop(stdout)
	go s.stderrLoop(stderr)
	go s.waitLoop()
	s.sendInitialize()
}

// failLocked is called with the mutex held when spawning goes wrong. The
// failed state is terminal: it is reported once and never retried.
func (s *Session) failLocked(cmdName string, err error) {
	s.state = StateFailed
	s.mu.Unlock()
	log.Error().Err(err).Str("module", "lsp").Str("cmd", cmdName).Msg("spawn failed")
	if errors.Is(err, exec.ErrNotFound) {
		s.debug("Binary not found. Please install " + cmdName + ".")
	} else {
		s.debug("LSP spawn error: " + err.Error())
	}
}

func (s *Session) sendInitialize() {
	s.mu.Lock()
	s.nextID++
	s.initID = s.nextID
	id := s.initID
	s.mu.Unlock()

	params := map[string]any{
		"processId":    nil,
		"rootUri":      nil,
		"capabilities": map[string]any{},
		"trace":        "off",
	}
	s.write(rpcMessage{
		JSONRPC: "2.0",
		ID:      numericID(id),
		Method:  "initialize",
		Params:  params,
	})
}

// HandleInput routes one client-originated tooling message. Requests issued
// before the handshake completes are answered with an empty result so the
// subprocess never sees an out-of-order request.
func (s *Session) HandleInput(in protocol.LspInput) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	// Notification: forward only when the server is ready, drop otherwise.
	if len(in.ID) == 0 {
		if state != StateReady {
			return
		}
		s.write(rpcMessage{JSONRPC: "2.0", Method: in.Method, Params: rawOrNil(in.Params)})
		return
	}

	if state != StateReady {
		s.emit.Emit(protocol.TypeLspNotification, rpcMessage{
			JSONRPC: "2.0",
			ID:      in.ID,
			Result:  json.RawMessage("null"),
		})
		return
	}

	s.mu.Lock()
	s.nextID++
	rid := s.nextID
	call := &pendingCall{clientID: in.ID}
	call.timer = time.AfterFunc(s.timeout, func() { s.expire(rid) })
	s.pending[rid] = call
	s.mu.Unlock()

	s.write(rpcMessage{
		JSONRPC: "2.0",
		ID:      numericID(rid),
		Method:  in.Method,
		Params:  rawOrNil(in.Params),
	})
}

// expire abandons a request that never got a response. No error is
// synthesized; the client runs its own fallback timer.
func (s *Session) expire(rid int64) {
	s.mu.Lock()
	_, ok := s.pending[rid]
	delete(s.pending, rid)
	s.mu.Unlock()
	if ok {
		log.Debug().Str("module", "lsp").Int64("id", rid).Msg("request timed out")
	}
}

func (s *Session) readLoop(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			msgs := s.framer.Feed(buf[:n])
			s.mu.Unlock()
			for _, body := range msgs {
				s.handleServerMessage(body)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) stderrLoop(r io.Reader) {
	buf := make([]byte, 8*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.debug("STDERR: " + string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	s.mu.Lock()
	terminal := s.state == StateTerminated || s.state == StateFailed
	if !terminal {
		s.state = StateTerminated
	}
	for rid, call := range s.pending {
		call.timer.Stop()
		delete(s.pending, rid)
	}
	s.mu.Unlock()

	if !terminal {
		log.Info().Err(err).Str("module", "lsp").Str("language", s.language).Msg("server exited")
		s.debug("LSP server exited")
	}
}

// handleServerMessage dispatches one decoded message from the subprocess.
func (s *Session) handleServerMessage(body []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error().Err(err).Str("module", "lsp").Msg("bad server message")
		return
	}

	id, isResponse := parseNumericID(msg.ID)
	if !isResponse {
		// Unsolicited notification, delivered as-is.
		s.emit.Emit(protocol.TypeLspNotification, json.RawMessage(body))
		return
	}

	s.mu.Lock()
	if id == s.initID && s.state == StateStarting {
		s.initID = 0
		s.state = StateReady
		fileName := s.fileName
		language := s.language
		content := s.content
		s.mu.Unlock()
		s.finishHandshake(fileName, language, content)
		return
	}

	call, ok := s.pending[id]
	if ok {
		call.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		// Response to an abandoned or unknown request.
		return
	}
	msg.ID = call.clientID
	s.emit.Emit(protocol.TypeLspNotification, msg)
}

// finishHandshake acknowledges the initialize response and opens the
// current buffer, unlocking request forwarding.
func (s *Session) finishHandshake(fileName, language, content string) {
	s.write(rpcMessage{JSONRPC: "2.0", Method: "initialized", Params: map[string]any{}})

	if fileName == "" {
		fileName = "untitled"
	}
	s.write(rpcMessage{
		JSONRPC: "2.0",
		Method:  "textDocument/didOpen",
		Params: map[string]any{
			"textDocument": map[string]any{
				"uri":        "file:///" + fileName,
				"languageId": language,
				"version":    1,
				"text":       content,
			},
		},
	})
	log.Info().Str("module", "lsp").Str("language", language).Msg("handshake complete")
}

func (s *Session) write(msg rpcMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "lsp").Msg("encode request")
		return
	}

	s.mu.Lock()
	w := s.stdin
	s.mu.Unlock()
	if w == nil {
		return
	}
	// The handshake writes from the subprocess read goroutine while client
	// requests write from the websocket read pump; a frame larger than the
	// pipe's atomic write size would interleave without this.
	s.wmu.Lock()
	_, err = w.Write(EncodeFrame(body))
	s.wmu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("module", "lsp").Msg("write to server")
	}
}

// Stop force-terminates the subprocess and discards the session state.
// Safe to call on any state, any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	cmd := s.cmd
	stdin := s.stdin
	for rid, call := range s.pending {
		call.timer.Stop()
		delete(s.pending, rid)
	}
	s.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func numericID(id int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(id, 10))
}

func parseNumericID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
