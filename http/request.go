package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrRequestLineTooLong   = errors.New("http: request line too long")
)

type Request struct {
	Method   string
	Target   string
	Protocol string
}

func (req *Request) Reset() {
	req.Method = ""
	req.Target = ""
	req.Protocol = ""
}

// ParseRequestLine splits line on runs of whitespace into method, target and an
// optional protocol token. Tokens after the third are ignored.
func ParseRequestLine(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Request{}, fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}

	req := Request{
		Method: fields[0],
		Target: fields[1],
	}
	if len(fields) > 2 {
		req.Protocol = fields[2]
	}
	return req, nil
}

// ReadRequestLine reads a single line without its terminator. It returns io.EOF
// if the stream ends before any byte was read; an unterminated line at EOF is
// returned as is. A limit <= 0 disables the length check.
func ReadRequestLine(reader *bufio.Reader, limit int) (string, error) {
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)

		switch {
		case err == nil, errors.Is(err, io.EOF):
			if len(line) == 0 {
				return "", err
			}
			line = trimLineEnd(line)
			if limit > 0 && len(line) > limit {
				return "", ErrRequestLineTooLong
			}
			return string(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			// One extra byte: a trailing '\r' may start the terminator.
			if limit > 0 && len(line) > limit+1 {
				return "", ErrRequestLineTooLong
			}
		default:
			return "", err
		}
	}
}

// trimLineEnd removes one "\n" or "\r\n" terminator.
func trimLineEnd(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}
