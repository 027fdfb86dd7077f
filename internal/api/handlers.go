// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/logging"
	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

// Checksum position shared by both variants
const (
	checksumOffset = 65
	checksumWidth  = 4
)

// variant returns the ?variant= override or the server default
func (s *Server) variant(c *gin.Context) (aircode.Variant, bool) {
	name := c.Query("variant")
	if name == "" {
		return s.opts.Variant, true
	}
	v, err := aircode.LookupVariant(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error(), http.StatusBadRequest))
		return nil, false
	}
	return v, true
}

// bindState reads a JSON state document from the body
func bindState(c *gin.Context) (aircode.Controller, bool) {
	var doc statefile.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid state document: "+err.Error(), http.StatusBadRequest))
		return aircode.Controller{}, false
	}
	state, err := doc.Controller()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error(), http.StatusUnprocessableEntity))
		return aircode.Controller{}, false
	}
	return state, true
}

func frameChecksum(codes []aircode.Code) uint8 {
	var sum uint8
	for i, code := range codes[checksumOffset : checksumOffset+checksumWidth] {
		b, _ := code.Byte()
		sum |= b << i
	}
	return sum
}

func (s *Server) health(c *gin.Context) {
	names := make([]string, 0, 2)
	for _, v := range aircode.Variants() {
		names = append(names, v.Name())
	}
	c.JSON(http.StatusOK, NewStandardResponse(HealthResponse{
		Status:   "healthy",
		Variant:  s.opts.Variant.Name(),
		Link:     s.opts.Transmitter != nil,
		Variants: names,
	}, "ok"))
}

func (s *Server) encode(c *gin.Context) {
	v, ok := s.variant(c)
	if !ok {
		return
	}
	state, ok := bindState(c)
	if !ok {
		return
	}

	codes := v.Encode(state)
	c.JSON(http.StatusOK, NewStandardResponse(EncodeResponse{
		Variant:  v.Name(),
		Codes:    aircode.FormatCodes(codes),
		Checksum: frameChecksum(codes),
		Summary:  aircode.FormatController(state),
	}, "encoded"))
}

func (s *Server) decode(c *gin.Context) {
	v, ok := s.variant(c)
	if !ok {
		return
	}
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request: "+err.Error(), http.StatusBadRequest))
		return
	}
	codes, err := aircode.ParseCodes(req.Codes)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error(), http.StatusBadRequest))
		return
	}

	state, err := v.Decode(codes)
	if err != nil {
		resp := NewErrorResponse(err.Error(), http.StatusUnprocessableEntity)
		resp.Kind = aircode.ErrorKind(err)
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, NewStandardResponse(DecodeResponse{
		Variant: v.Name(),
		State:   statefile.FromController(state),
		Summary: aircode.FormatController(state),
	}, "decoded"))
}

// repeat reads ?repeat=, default 1
func repeat(c *gin.Context) (uint8, bool) {
	raw := c.DefaultQuery("repeat", "1")
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil || n < 1 || n > irlink.MaxRepeat {
		c.JSON(http.StatusBadRequest, NewErrorResponse(
			fmt.Sprintf("repeat must be 1-%d", irlink.MaxRepeat), http.StatusBadRequest))
		return 0, false
	}
	return uint8(n), true
}

func (s *Server) transmit(c *gin.Context) {
	if !s.requireLink(c) {
		return
	}
	n, ok := repeat(c)
	if !ok {
		return
	}
	state, ok := bindState(c)
	if !ok {
		return
	}
	s.send(c, state, n)
}

func (s *Server) requireLink(c *gin.Context) bool {
	if s.opts.Transmitter == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse("no IR bridge connected", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (s *Server) send(c *gin.Context, state aircode.Controller, n uint8) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.TransmitTimeout)
	defer cancel()

	result, err := s.opts.Transmitter.TransmitState(ctx, state, n)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, link.ErrTransmitBusy):
			status = http.StatusConflict
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		logging.Warn("API transmit failed", zap.Error(err))
		c.JSON(status, NewErrorResponse(err.Error(), status))
		return
	}

	c.JSON(http.StatusOK, NewStandardResponse(TransmitResponse{
		Variant:    s.opts.Variant.Name(),
		State:      statefile.FromController(state),
		Codes:      result.Codes,
		DurationMs: result.Duration.Milliseconds(),
	}, "transmitted"))
}

func (s *Server) listPresets(c *gin.Context) {
	names := make([]string, 0, len(s.opts.Presets))
	for name := range s.opts.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, NewStandardResponse(names, "ok"))
}

func (s *Server) lookupPreset(name string) (statefile.Document, bool) {
	for k, doc := range s.opts.Presets {
		if strings.EqualFold(k, name) {
			return doc, true
		}
	}
	return statefile.Document{}, false
}

func (s *Server) transmitPreset(c *gin.Context) {
	doc, found := s.lookupPreset(c.Param("name"))
	if !found {
		c.JSON(http.StatusNotFound, NewErrorResponse("unknown preset "+c.Param("name"), http.StatusNotFound))
		return
	}
	if !s.requireLink(c) {
		return
	}
	n, ok := repeat(c)
	if !ok {
		return
	}
	state, err := doc.Controller()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error(), http.StatusUnprocessableEntity))
		return
	}
	s.send(c, state, n)
}
