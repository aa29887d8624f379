package http

const (
	StatusOK                  uint16 = 200 // RFC 9110, 15.3.1
	StatusBadRequest          uint16 = 400 // RFC 9110, 15.5.1
	StatusForbidden           uint16 = 403 // RFC 9110, 15.5.4
	StatusNotFound            uint16 = 404 // RFC 9110, 15.5.5
	StatusRequestURITooLong   uint16 = 414 // RFC 9110, 15.5.15
	StatusInternalServerError uint16 = 500 // RFC 9110, 15.6.1
	StatusNotImplemented      uint16 = 501 // RFC 9110, 15.6.2
	StatusServiceUnavailable  uint16 = 503 // RFC 9110, 15.6.4
)

const unknownStatusCode = "Unknown Status Code"

var statusMessages = map[uint16]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusRequestURITooLong:   "URI Too Long",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusServiceUnavailable:  "Service Unavailable",
}

// StatusText returns the reason phrase for code, or "Unknown Status Code".
func StatusText(code uint16) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return unknownStatusCode
}
