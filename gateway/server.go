// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ezrec/serialbridge/message"
)

const (
	HEADER_REQUEST_ID = "X-Request-Id"

	DEFAULT_REQUEST_TIMEOUT = 30 * time.Second

	// Client closed the request before it resolved.
	StatusClientClosedRequest = 499
)

// Server exposes the gateway as the synthetic HTTP endpoints.
type Server struct {
	Gateway        *Gateway
	RequestTimeout time.Duration // Zero waits forever.

	engine *gin.Engine
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewServer builds the router. If gatherer is not nil it is served on
// GET /metrics.
func NewServer(gw *Gateway, timeout time.Duration, gatherer prometheus.Gatherer) (s *Server) {
	s = &Server{
		Gateway:        gw,
		RequestTimeout: timeout,
		engine:         gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.GET(message.KindRead.Path(), s.handle(message.KindRead))
	s.engine.POST(message.KindWrite.Path(), s.handle(message.KindWrite))
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Gateway.logger().Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handle(kind message.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := message.ID(c.GetHeader(HEADER_REQUEST_ID))
		if id == "" {
			id = message.NewID()
		}
		c.Header(HEADER_REQUEST_ID, string(id))

		intent := message.Intent{ID: id, Kind: kind}
		if kind == message.KindWrite {
			payload, err := c.GetRawData()
			if err != nil {
				c.String(http.StatusBadRequest, err.Error())
				return
			}
			intent.Payload = payload
		}

		ctx := c.Request.Context()
		if s.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
			defer cancel()
		}

		ticket, err := s.Gateway.Park(ctx, intent)
		if err != nil {
			c.String(StatusOf(err), bodyOf(err))
			return
		}

		data, err := ticket.Wait(ctx)
		if err != nil {
			c.String(StatusOf(err), bodyOf(err))
			return
		}

		c.Data(http.StatusOK, "application/octet-stream", data)
	}
}

// StatusOf maps a gateway error to its HTTP status.
func StatusOf(err error) int {
	var remote *RemoteError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrProtocolViolation):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote):
		return http.StatusBadGateway
	case errors.Is(err, ErrKindInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}

// bodyOf is the response text for err. A remote failure carries only its
// message, so the client can rebuild the RemoteError.
func bodyOf(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return err.Error()
}

type inProcess struct {
	handler http.Handler
}

// RoundTrip serves req with the handler directly. No bytes touch a socket.
func (rt inProcess) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	if req.Body != nil {
		defer req.Body.Close()
	}

	if err = req.Context().Err(); err != nil {
		return
	}

	rec := httptest.NewRecorder()
	rt.handler.ServeHTTP(rec, req)

	resp = rec.Result()
	resp.Request = req

	return
}

// RoundTripper intercepts requests in-process, the way a service worker
// intercepts fetches.
func (s *Server) RoundTripper() http.RoundTripper {
	return inProcess{handler: s.engine}
}

// Serve exposes the endpoints on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) (err error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) (err error) {
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.Gateway.logger().Info("gateway listening", zap.Stringer("addr", listener.Addr()))

	served := make(chan struct{})
	defer close(served)

	go func() {
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	return
}
