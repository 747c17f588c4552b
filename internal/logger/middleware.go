// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	forwardedHostHeaderKey = "x-forwarded-host"
	forwardedForHeaderKey  = "x-forwarded-for"
	requestIDHeaderName    = "x-request-id"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"
)

// httpFields groups the request and response attributes of a log line.
type httpFields struct {
	Request  *requestFields  `json:"request,omitempty"`
	Response *responseFields `json:"response,omitempty"`
}

type requestFields struct {
	Method    string `json:"method,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

type responseFields struct {
	StatusCode int `json:"statusCode,omitempty"`
	BodyBytes  int `json:"bodyBytes,omitempty"`
}

type hostFields struct {
	Hostname      string `json:"hostname,omitempty"`
	ForwardedHost string `json:"forwardedHost,omitempty"`
	IP            string `json:"ip,omitempty"`
}

// RequestID returns the x-request-id header of the request or a new random uuid.
func RequestID(c *fiber.Ctx) string {
	if requestID := c.Get(requestIDHeaderName); requestID != "" {
		return requestID
	}

	return uuid.NewString()
}

func removePort(host string) string {
	return strings.Split(host, ":")[0]
}

func requestHost(c *fiber.Ctx) hostFields {
	return hostFields{
		ForwardedHost: c.Get(forwardedHostHeaderKey),
		Hostname:      removePort(string(c.Request().Host())),
		IP:            c.Get(forwardedForHeaderKey),
	}
}

// statusCode returns the status that fiber will send for err, or the response status when err is nil.
func statusCode(c *fiber.Ctx, err error) (int, int) {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return fiberErr.Code, len(fiberErr.Message)
	}

	return c.Response().StatusCode(), len(c.Response().Body())
}

// RequestMiddlewareLogger is a fiber middleware to log all requests.
// It logs the incoming request and, when the request is completed, its latency and status.
// Requests whose path starts with one of excludedPrefix are not logged.
func RequestMiddlewareLogger(logger Logger, excludedPrefix []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		start := time.Now()
		requestID := RequestID(c)
		log := logger.With("reqId", requestID)
		c.SetUserContext(WithContext(c.UserContext(), log))

		request := &requestFields{Method: c.Method(), UserAgent: c.Get(fiber.HeaderUserAgent)}
		log.Trace(IncomingRequestMessage,
			"http", httpFields{Request: request},
			"url", path,
			"host", requestHost(c),
		)

		err := c.Next()

		status, size := statusCode(c, err)
		log.Info(RequestCompletedMessage,
			"http", httpFields{Request: request, Response: &responseFields{StatusCode: status, BodyBytes: size}},
			"url", path,
			"host", requestHost(c),
			"responseTime", float64(time.Since(start).Milliseconds()),
		)

		return err
	}
}
