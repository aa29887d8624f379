package http

import "time"

const (
	DefaultWorkerPoolSize     = 5
	DefaultReadBufferSize     = 4096 // 4kB
	DefaultWriteBufferSize    = 4096 // 4kB
	DefaultMaxRequestLineSize = 8192 // 8kB
	DefaultLingerTimeout      = 500 * time.Millisecond

	MethodGet = "GET"
)

// Handler fills in ctx.Response for the request in ctx.Request.
type Handler func(ctx *RequestCtx)

var (
	protocolHttp11 = []byte("HTTP/1.1")
	crlf           = []byte("\r\n")
	headerSep      = []byte(": ")

	headerContentType   = []byte("Content-Type")
	headerContentLength = []byte("Content-Length")
	headerConnection    = []byte("Connection")
	headerClose         = []byte("close")
)
