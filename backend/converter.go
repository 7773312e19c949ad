package backend

import (
	"fmt"
	"math/big"

	"github.com/sieveir/sievekit/ir"
)

// BigIntConverter implements a positional-digit conversion between two
// backends built on the same math/big representation: it packs InLength
// source values (read most-significant-first, each in [0,fromModulus))
// into a single big.Int, then unpacks that integer into OutLength
// destination values (in [0,toModulus)), matching WizToolKit's
// PLASMASnooze converter's little-endian/big-endian-agnostic digit
// re-basing (original_source/.../PLASMASnooze.t.h).
type BigIntConverter struct {
	from, to   TypeBackend
	inL, outL  uint64
	fromMod    *big.Int
	toMod      *big.Int
}

// NewBigIntConverter builds a converter between two backends sharing a
// digit-packing representation (field<->field, ring<->ring, or
// field<->ring, since all of them reduce to a big.Int modulus here).
func NewBigIntConverter(from, to TypeBackend, inLength, outLength uint64) *BigIntConverter {
	return &BigIntConverter{
		from: from, to: to,
		inL: inLength, outL: outLength,
		fromMod: from.Type().Modulus().Big(),
		toMod:   to.Type().Modulus().Big(),
	}
}

func (c *BigIntConverter) From() ir.TypeSpec { return c.from.Type() }
func (c *BigIntConverter) To() ir.TypeSpec   { return c.to.Type() }
func (c *BigIntConverter) InLength() uint64  { return c.inL }
func (c *BigIntConverter) OutLength() uint64 { return c.outL }

// Convert packs in (most-significant digit first) into one integer and
// re-expands it into OutLength digits of the destination modulus. When
// wrap is false, a packed value that doesn't fit in OutLength
// destination digits is a ValueError (spec.md section 7); when wrap is
// true, it's silently truncated via Mod.
func (c *BigIntConverter) Convert(in []Value, wrap bool) ([]Value, error) {
	if uint64(len(in)) != c.inL {
		return nil, fmt.Errorf("backend: converter expected %d inputs, got %d", c.inL, len(in))
	}
	packed := new(big.Int)
	for _, v := range in {
		packed.Mul(packed, c.fromMod)
		packed.Add(packed, v.N.Big())
	}

	capacity := new(big.Int).Exp(c.toMod, big.NewInt(int64(c.outL)), nil)
	if packed.Cmp(capacity) >= 0 {
		if !wrap {
			return nil, fmt.Errorf("backend: converted value does not fit in %d digits of the destination type", c.outL)
		}
		packed.Mod(packed, capacity)
	}

	out := make([]Value, c.outL)
	rem := new(big.Int).Set(packed)
	for i := int(c.outL) - 1; i >= 0; i-- {
		digit := new(big.Int)
		digit.Mod(rem, c.toMod)
		rem.Div(rem, c.toMod)
		out[i] = c.to.Reduce(ir.NumberFromBig(digit))
	}
	return out, nil
}
