package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// connState is the phase of a connection
type connState int32

const (
	stateReading connState = iota
	stateRouting
	stateWriting
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateRouting:
		return "routing"
	case stateWriting:
		return "writing"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("connState(%d)", int32(s))
	}
}

// Connection outcomes, used as metric labels
const (
	outcomeServed     = "served"
	outcomeReadError  = "read_error"
	outcomeWriteError = "write_error"
	outcomeTimedOut   = "timed_out"
)

var errBodyTooLarge = errors.New("request body too large")

// conn is a single request/response exchange. It is owned by its serving
// goroutine and by the deadline timer callback, and released by whichever
// finishes first.
type conn struct {
	id      string
	nc      net.Conn
	srv     *Server
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *quartz.Timer
	state   *atomic.Int32
	closed  *atomic.Bool
	outcome *atomic.String
}

func (s *Server) newConn(ctx context.Context, nc net.Conn) *conn {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	return &conn{
		id:      id,
		nc:      nc,
		srv:     s,
		logger:  s.logger.With(zap.String("conn_id", id), zap.String("remote", nc.RemoteAddr().String())),
		ctx:     ctx,
		cancel:  cancel,
		state:   atomic.NewInt32(int32(stateReading)),
		closed:  atomic.NewBool(false),
		outcome: atomic.NewString(""),
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	c := s.newConn(ctx, nc)
	s.metrics.connOpened()
	c.timer = s.clock.AfterFunc(s.cfg.Timeout, c.onDeadline, "conn", "deadline")
	c.serve()
}

func (c *conn) setState(st connState) {
	c.state.Store(int32(st))
}

func (c *conn) getState() connState {
	return connState(c.state.Load())
}

// release closes the socket and cancels the connection context. Only the
// first call has any effect; it reports whether this call did the release.
func (c *conn) release(outcome string) bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	c.outcome.Store(outcome)
	c.setState(stateClosed)
	c.cancel()
	_ = c.nc.Close()
	c.srv.metrics.connClosed(outcome)
	return true
}

// onDeadline runs on the timer goroutine
func (c *conn) onDeadline() {
	state := c.getState()
	if c.release(outcomeTimedOut) {
		c.logger.Info("Connection deadline exceeded", zap.Stringer("state", state))
	}
}

func (c *conn) serve() {
	req, err := c.readRequest()
	if err != nil {
		if c.release(outcomeReadError) {
			c.timer.Stop()
			c.logger.Debug("Dropping connection on read error", zap.Error(err))
		}
		return
	}

	c.setState(stateRouting)
	start := c.srv.clock.Now()
	rw := c.route(req)
	c.srv.metrics.observeRequest(req.Method, rw.statusCode(), c.srv.clock.Since(start))

	c.setState(stateWriting)
	if err := c.writeResponse(req, rw); err != nil {
		if c.release(outcomeWriteError) {
			c.timer.Stop()
			c.logger.Debug("Write failed", zap.Error(err))
		}
		return
	}

	if cw, ok := c.nc.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	c.timer.Stop()
	c.release(outcomeServed)
}

// readRequest reads the request head and the full body
func (c *conn) readRequest() (*http.Request, error) {
	req, err := http.ReadRequest(bufio.NewReader(c.nc))
	if err != nil {
		return nil, err
	}

	limit := c.srv.cfg.MaxBodyBytes
	body, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.RemoteAddr = c.nc.RemoteAddr().String()
	return req.WithContext(c.ctx), nil
}

// route invokes the handler. A panic becomes an empty 500.
func (c *conn) route(req *http.Request) (rw *responseBuffer) {
	rw = newResponseBuffer()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic", zap.Any("panic", r))
			rw = newResponseBuffer()
			rw.WriteHeader(http.StatusInternalServerError)
		}
	}()
	c.srv.handler.ServeHTTP(rw, req)
	return rw
}

func (c *conn) writeResponse(req *http.Request, rw *responseBuffer) error {
	body := rw.body.Bytes()
	status := rw.statusCode()
	resp := &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		ProtoMajor:    req.ProtoMajor,
		ProtoMinor:    req.ProtoMinor,
		Header:        rw.header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Close:         true,
	}
	if resp.ProtoMajor == 0 {
		resp.ProtoMajor, resp.ProtoMinor = 1, 1
	}

	bw := bufio.NewWriter(c.nc)
	if err := resp.Write(bw); err != nil {
		return err
	}
	return bw.Flush()
}
