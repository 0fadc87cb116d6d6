// Package api exposes a console session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/nixcodex/ls9/internal/api/docs" // swagger spec
	"github.com/nixcodex/ls9/sdk/contracts"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title LS9 Control API
// @version 1.0
// @description Reads and writes Yamaha LS9 console parameters over MIDI
// @host localhost:8080
// @BasePath /api/v1

// Server routes HTTP requests to a console session.
type Server struct {
	console contracts.Console
	schema  contracts.Schema
	logger  contracts.Logger
	engine  *gin.Engine
}

// NewServer builds the router. schema decides how written values are typed;
// a nil schema treats every element as an integer.
func NewServer(console contracts.Console, schema contracts.Schema, logger contracts.Logger) *Server {
	s := &Server{console: console, schema: schema, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", s.healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/params/:element/:index/:channel", s.getParam)
		v1.PUT("/params/:element/:index/:channel", s.putParam)
		v1.POST("/params/:element/:index/:channel/fade", s.fadeParam)
		v1.GET("/channels/:channel/name", s.channelName)
		v1.GET("/events/next", s.nextTouched)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", s.logger.Field().String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			s.logger.Field().String("method", c.Request.Method),
			s.logger.Field().String("path", c.Request.URL.Path),
			s.logger.Field().Int("status", c.Writer.Status()),
			s.logger.Field().Duration("latency", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ParamResponse is the state of one parameter.
type ParamResponse struct {
	Address string `json:"address"`
	Element int    `json:"element"`
	Index   int    `json:"index"`
	Channel int    `json:"channel"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Value   int32  `json:"value"`
	Display string `json:"display"`
}

// WriteRequest carries the new value of a parameter: an integer, or a
// boolean for on/off parameters.
type WriteRequest struct {
	Value json.RawMessage `json:"value" binding:"required" swaggertype:"integer"`
}

// FadeRequest describes a linear fade.
type FadeRequest struct {
	Target     int32 `json:"target"`
	DurationMs int   `json:"durationMs" binding:"min=0"`
}

// NameResponse is a channel display name.
type NameResponse struct {
	Channel int    `json:"channel"`
	Name    string `json:"name"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ls9",
	})
}

// getParam godoc
// @Summary Read a parameter
// @Description Requests the current value from the console
// @Tags params
// @Produce json
// @Param element path int true "Element"
// @Param index path int true "Index"
// @Param channel path int true "Channel"
// @Success 200 {object} ParamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /params/{element}/{index}/{channel} [get]
func (s *Server) getParam(c *gin.Context) {
	addr, ok := s.address(c)
	if !ok {
		return
	}
	v, err := s.console.Read(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.paramResponse(addr, v))
}

// putParam godoc
// @Summary Write a parameter
// @Description Sets a parameter and waits for the console to acknowledge it
// @Tags params
// @Accept json
// @Produce json
// @Param element path int true "Element"
// @Param index path int true "Index"
// @Param channel path int true "Channel"
// @Param body body WriteRequest true "New value"
// @Success 200 {object} ParamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /params/{element}/{index}/{channel} [put]
func (s *Server) putParam(c *gin.Context) {
	addr, ok := s.address(c)
	if !ok {
		return
	}
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	v, err := decodeValue(s.schema.Lookup(addr.Element).Kind, req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.console.Write(c.Request.Context(), addr, v); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.paramResponse(addr, v))
}

// fadeParam godoc
// @Summary Fade a parameter
// @Description Moves an integer parameter linearly to a target; responds once the fade ends
// @Tags params
// @Accept json
// @Produce json
// @Param element path int true "Element"
// @Param index path int true "Index"
// @Param channel path int true "Channel"
// @Param body body FadeRequest true "Fade target and duration"
// @Success 200 {object} ParamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /params/{element}/{index}/{channel}/fade [post]
func (s *Server) fadeParam(c *gin.Context) {
	addr, ok := s.address(c)
	if !ok {
		return
	}
	var req FadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	d := time.Duration(req.DurationMs) * time.Millisecond
	if err := s.console.Fade(c.Request.Context(), addr, req.Target, d); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.paramResponse(addr, contracts.IntValue(req.Target)))
}

// channelName godoc
// @Summary Read a channel name
// @Tags channels
// @Produce json
// @Param channel path int true "Channel"
// @Success 200 {object} NameResponse
// @Failure 400 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /channels/{channel}/name [get]
func (s *Server) channelName(c *gin.Context) {
	ch, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "channel must be an integer"})
		return
	}
	name, err := s.console.ChannelName(c.Request.Context(), ch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NameResponse{Channel: ch, Name: name})
}

// nextTouched godoc
// @Summary Wait for a parameter change
// @Description Blocks until the console reports a parameter change. Responds 204 if none arrives in time.
// @Tags events
// @Produce json
// @Param timeoutMs query int false "Maximum wait in milliseconds (default 30000)"
// @Success 200 {object} ParamResponse
// @Success 204
// @Router /events/next [get]
func (s *Server) nextTouched(c *gin.Context) {
	timeout := 30 * time.Second
	if q := c.Query("timeoutMs"); q != "" {
		ms, err := strconv.Atoi(q)
		if err != nil || ms <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "timeoutMs must be a positive integer"})
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()
	addr, err := s.console.NextParamTouched(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.Status(http.StatusNoContent)
	case err != nil:
		s.fail(c, err)
	default:
		c.JSON(http.StatusOK, ParamResponse{
			Address: addr.String(),
			Element: addr.Element,
			Index:   addr.Index,
			Channel: addr.Channel,
			Name:    s.schema.Lookup(addr.Element).Name,
		})
	}
}

func (s *Server) address(c *gin.Context) (contracts.Address, bool) {
	var fields [3]int
	for i, key := range [...]string{"element", "index", "channel"} {
		n, err := strconv.Atoi(c.Param(key))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: key + " must be an integer"})
			return contracts.Address{}, false
		}
		fields[i] = n
	}
	addr := contracts.Address{Element: fields[0], Index: fields[1], Channel: fields[2]}
	if err := addr.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return contracts.Address{}, false
	}
	return addr, true
}

func (s *Server) paramResponse(addr contracts.Address, v contracts.Value) ParamResponse {
	return ParamResponse{
		Address: addr.String(),
		Element: addr.Element,
		Index:   addr.Index,
		Channel: addr.Channel,
		Name:    s.schema.Lookup(addr.Element).Name,
		Kind:    v.Kind().String(),
		Value:   v.Raw(),
		Display: v.String(),
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Console request failed",
			s.logger.Field().String("path", c.Request.URL.Path),
			s.logger.Field().Error("error", err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// statusFor maps session errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidAddress), errors.Is(err, contracts.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, contracts.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrTransportWrite), errors.Is(err, contracts.ErrDeviceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeValue accepts a JSON integer for any kind and a JSON boolean for
// boolean parameters.
func decodeValue(kind contracts.Kind, raw json.RawMessage) (contracts.Value, error) {
	if string(raw) == "null" {
		return contracts.Value{}, fmt.Errorf("%w: value must not be null", contracts.ErrInvalidValue)
	}
	if kind == contracts.KindBool {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return contracts.BoolValue(b), nil
		}
	}
	var n int32
	if err := json.Unmarshal(raw, &n); err != nil {
		return contracts.Value{}, fmt.Errorf("%w: value must be a 32-bit integer", contracts.ErrInvalidValue)
	}
	return contracts.ValueOf(kind, n), nil
}
