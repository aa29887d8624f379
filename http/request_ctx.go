package http

import (
	"bufio"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
)

// RequestCtx is a worker slot. Its buffers are allocated once and reset for
// every connection the worker picks up.
type RequestCtx struct {
	ID         string
	Conn       net.Conn
	ConnReader *bufio.Reader
	ConnWriter *bufio.Writer

	Request  Request
	Response Response

	Logger    *slog.Logger
	StartedAt time.Time
}

func NewRequestCtx() *RequestCtx {
	return &RequestCtx{
		ConnReader: bufio.NewReaderSize(nil, DefaultReadBufferSize),
		ConnWriter: bufio.NewWriterSize(nil, DefaultWriteBufferSize),
		Logger:     slog.Default(),
	}
}

// Reset binds the slot to conn.
func (reqCtx *RequestCtx) Reset(conn net.Conn, logger *slog.Logger) {
	reqCtx.ID = uuid.NewString()
	reqCtx.Conn = conn
	reqCtx.ConnReader.Reset(conn)
	reqCtx.ConnWriter.Reset(conn)
	reqCtx.Request.Reset()
	reqCtx.Response.Reset()
	reqCtx.StartedAt = time.Now()

	if logger == nil {
		logger = slog.Default()
	}
	reqCtx.Logger = logger.With("conn", reqCtx.ID, "remote", remoteAddr(conn))
}

// Release drops the references to the connection so it can be collected while
// the slot is idle.
func (reqCtx *RequestCtx) Release() {
	reqCtx.Conn = nil
	reqCtx.ConnReader.Reset(nil)
	reqCtx.ConnWriter.Reset(nil)
	reqCtx.Response.Body = nil
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
