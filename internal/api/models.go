// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"time"

	"github.com/Thermoquad/mistral/internal/statefile"
)

// StandardResponse wraps every successful reply
type StandardResponse struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Success bool        `json:"success"`
	Time    int64       `json:"time"`
}

// ErrorResponse is returned for failed requests. Kind carries the frame
// decode error kind when a frame was rejected.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Success bool   `json:"success"`
	Time    int64  `json:"time"`
}

// NewStandardResponse builds a success reply
func NewStandardResponse(data interface{}, message string) StandardResponse {
	return StandardResponse{
		Code:    0,
		Data:    data,
		Message: message,
		Success: true,
		Time:    time.Now().Unix(),
	}
}

// NewErrorResponse builds an error reply
func NewErrorResponse(message string, code int) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		Success: false,
		Time:    time.Now().Unix(),
	}
}

// HealthResponse reports service status
type HealthResponse struct {
	Status   string   `json:"status"`
	Variant  string   `json:"variant"`
	Link     bool     `json:"link"`
	Variants []string `json:"variants"`
}

// EncodeResponse is a rendered frame
type EncodeResponse struct {
	Variant  string `json:"variant"`
	Codes    string `json:"codes"`
	Checksum uint8  `json:"checksum"`
	Summary  string `json:"summary"`
}

// DecodeRequest carries a frame in text form (S, C, E, 0, 1)
type DecodeRequest struct {
	Codes string `json:"codes" binding:"required"`
}

// DecodeResponse is a decoded frame
type DecodeResponse struct {
	Variant string             `json:"variant"`
	State   statefile.Document `json:"state"`
	Summary string             `json:"summary"`
}

// TransmitResponse reports a completed transmission
type TransmitResponse struct {
	Variant    string             `json:"variant"`
	State      statefile.Document `json:"state"`
	Codes      uint64             `json:"codes"`
	DurationMs int64              `json:"duration_ms"`
}
