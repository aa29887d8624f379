package http

// writeIntToBuffer writes the decimal form of n into buf and returns the
// number of bytes used. buf must hold at least 20 bytes.
func writeIntToBuffer(n int, buf []byte) int {
	if n <= 0 {
		buf[0] = '0'
		return 1
	}

	digits := 0
	for temp := n; temp > 0; temp /= 10 {
		digits++
	}

	for i := digits - 1; i >= 0; i-- {
		buf[i] = '0' + byte(n%10)
		n /= 10
	}

	return digits
}
