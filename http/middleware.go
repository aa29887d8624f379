package http

import "fmt"

type Middleware func(next Handler) Handler

// RecoverMiddleware turns a panicking handler into a 500 response.
func RecoverMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			defer func() {
				if recovered := recover(); recovered != nil {
					ctx.Logger.Error("handler panicked", "panic", fmt.Sprint(recovered))
					ctx.Response.WithError(StatusInternalServerError)
				}
			}()

			next(ctx)
		}
	}
}

// Chain wraps handler so the first middleware is the outermost.
func Chain(handler Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}
