package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
)

type ValidationError struct {
	Errors []validator.ValidationError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Message)
	}

	return "validation failed: " + strings.Join(msgs, "; ")
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *wsconn.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives every error produced while decoding or handling a message.
type ErrorHandler func(ctx context.Context, conn *wsconn.Conn, err error)

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	validate     *validator.Validator
	errorHandler ErrorHandler
}

func New(validate *validator.Validator, errorHandler ErrorHandler) *WSRouter {
	if errorHandler == nil {
		errorHandler = func(context.Context, *wsconn.Conn, error) {}
	}

	return &WSRouter{
		routes:       make(map[string]route),
		validate:     validate,
		errorHandler: errorHandler,
	}
}

func (r *WSRouter) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
}

// Handle registers a typed handler. Payloads are decoded into T and validated before the
// middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) > 0 && string(raw) != "null" {
				if err := json.Unmarshal(raw, &payload); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
				}
			}

			if r.validate != nil {
				if validationErrors, ok := r.validate.Validate(payload); !ok {
					return nil, &ValidationError{Errors: validationErrors}
				}
			}

			return payload, nil
		},
		handler: func(ctx context.Context, conn *wsconn.Conn, payload any) error {
			return handler(ctx, conn, payload.(T))
		},
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

// ServeMessage decodes and dispatches a single frame.
func (r *WSRouter) ServeMessage(ctx context.Context, conn *wsconn.Conn, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.errorHandler(ctx, conn, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
		return
	}

	ctx = context.WithValue(ctx, messageTypeKey, msg.Type)

	rt, ok := r.routes[msg.Type]
	if !ok {
		r.errorHandler(ctx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
		return
	}

	payload, err := rt.decode(msg.Payload)
	if err != nil {
		r.errorHandler(ctx, conn, err)
		return
	}

	if err := r.chain(rt.handler)(ctx, conn, payload); err != nil {
		r.errorHandler(ctx, conn, err)
	}
}

// ServeConn handles frames one at a time until reading fails.
func (r *WSRouter) ServeConn(ctx context.Context, conn *wsconn.Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		r.ServeMessage(ctx, conn, data)
	}
}
