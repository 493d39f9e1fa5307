package core

import "github.com/illarion/pinlock/internal/crypto"

// PinLength is the number of digits in a PIN
const PinLength = 4

// ValidPin reports whether pin is exactly PinLength ASCII digits
func ValidPin(pin string) bool {
	if len(pin) != PinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// pinBuffer collects digits as they are typed. Cleared buffers are zeroed.
type pinBuffer struct {
	digits [PinLength]byte
	n      int
}

func (b *pinBuffer) push(d byte) {
	if b.n < PinLength {
		b.digits[b.n] = d
		b.n++
	}
}

func (b *pinBuffer) pop() {
	if b.n > 0 {
		b.n--
		b.digits[b.n] = 0
	}
}

func (b *pinBuffer) full() bool {
	return b.n == PinLength
}

func (b *pinBuffer) len() int {
	return b.n
}

func (b *pinBuffer) clear() {
	crypto.ClearBytes(b.digits[:])
	b.n = 0
}

func (b *pinBuffer) equal(other *pinBuffer) bool {
	return b.n == other.n && crypto.ConstantTimeCompare(b.digits[:b.n], other.digits[:other.n])
}

func (b *pinBuffer) String() string {
	return string(b.digits[:b.n])
}
