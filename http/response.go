package http

import (
	"bufio"
)

const contentTypeHTML = "text/html"

type Response struct {
	Status      uint16
	ContentType string
	Body        []byte
}

func (res *Response) Reset() {
	res.Status = StatusOK
	res.ContentType = ""
	res.Body = nil
}

// WithError replaces the response with a small HTML page describing status.
func (res *Response) WithError(status uint16) *Response {
	res.Status = status
	res.ContentType = contentTypeHTML
	res.Body = errorPage(status)
	return res
}

// WithFile sets a 200 response carrying data, typed by the suffix of name.
func (res *Response) WithFile(name string, data []byte) *Response {
	res.Status = StatusOK
	res.ContentType = ContentType(name)
	res.Body = data
	return res
}

// WriteTo writes the status line, headers and body to bw and flushes it once.
// Content-Length is always len(res.Body).
func (res *Response) WriteTo(bw *bufio.Writer) error {
	status := res.Status
	if status == 0 {
		status = StatusOK
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	var scratch [20]byte

	// Status line
	bw.Write(protocolHttp11)
	bw.WriteByte(' ')
	n := writeIntToBuffer(int(status), scratch[:])
	bw.Write(scratch[:n])
	bw.WriteByte(' ')
	bw.WriteString(StatusText(status))
	bw.Write(crlf)

	// Headers
	bw.Write(headerContentType)
	bw.Write(headerSep)
	bw.WriteString(contentType)
	bw.Write(crlf)

	bw.Write(headerContentLength)
	bw.Write(headerSep)
	n = writeIntToBuffer(len(res.Body), scratch[:])
	bw.Write(scratch[:n])
	bw.Write(crlf)

	bw.Write(headerConnection)
	bw.Write(headerSep)
	bw.Write(headerClose)
	bw.Write(crlf)

	bw.Write(crlf)

	// Body
	if _, err := bw.Write(res.Body); err != nil {
		return err
	}

	return bw.Flush()
}

func errorPage(status uint16) []byte {
	var scratch [20]byte
	n := writeIntToBuffer(int(status), scratch[:])

	page := make([]byte, 0, 64)
	page = append(page, "<html><body><h1>"...)
	page = append(page, scratch[:n]...)
	page = append(page, ' ')
	page = append(page, StatusText(status)...)
	page = append(page, "</h1></body></html>"...)
	return page
}
