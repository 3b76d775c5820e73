package flowtree

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/iov-one/flowtree/errors"
)

// Scale is the number of basis points that represent 100%.
const Scale = 10000

// BasisPoints is a fixed point fraction where Scale represents 100%.
type BasisPoints int64

// Validate returns an error if the value is not within [0, Scale].
func (b BasisPoints) Validate() error {
	if b < 0 || b > Scale {
		return errors.Wrapf(errors.ErrInput, "basis points %d not in [0, %d]", b, Scale)
	}
	return nil
}

// String returns a percentage representation, for example 12.50%.
func (b BasisPoints) String() string {
	sign := ""
	v := int64(b)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d%%", sign, v/100, v%100)
}

// Of returns the part of the amount that this fraction represents, rounded
// down.
func (b BasisPoints) Of(amount int64) (int64, error) {
	return MulDiv(amount, int64(b), Scale)
}

// UnmarshalJSON accepts both a number of basis points and a percentage
// string, for example 2500 or "25%".
func (b *BasisPoints) UnmarshalJSON(raw []byte) error {
	var human string
	if err := json.Unmarshal(raw, &human); err == nil {
		v, err := ParseBasisPoints(human)
		if err != nil {
			return err
		}
		*b = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return errors.Wrap(errors.ErrInput, "basis points must be a number or a percentage string")
	}
	*b = BasisPoints(n)
	return nil
}

// ParseBasisPoints parses a percentage with at most two decimal places
// ("12.5%") or a plain number of basis points ("1250").
func ParseBasisPoints(raw string) (BasisPoints, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasSuffix(raw, "%") {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInput, "invalid basis points %q", raw)
		}
		return BasisPoints(n), nil
	}

	chunks := strings.SplitN(strings.TrimSuffix(raw, "%"), ".", 2)
	whole, err := strconv.ParseInt(chunks[0], 10, 64)
	if err != nil || whole < 0 {
		return 0, errors.Wrapf(errors.ErrInput, "invalid percentage %q", raw)
	}
	var frac int64
	if len(chunks) == 2 {
		dec := chunks[1]
		if len(dec) == 0 || len(dec) > 2 {
			return 0, errors.Wrapf(errors.ErrInput, "invalid percentage precision %q", raw)
		}
		if len(dec) == 1 {
			dec += "0"
		}
		frac, err = strconv.ParseInt(dec, 10, 64)
		if err != nil || frac < 0 {
			return 0, errors.Wrapf(errors.ErrInput, "invalid percentage %q", raw)
		}
	}
	return BasisPoints(whole*100 + frac), nil
}

// MulDiv returns a * b / c rounded down. The multiplication cannot
// overflow, ErrOverflow is returned only if the result does not fit int64.
func MulDiv(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, errors.Wrap(errors.ErrInput, "division by zero")
	}
	res := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	res.Quo(res, big.NewInt(c))
	if !res.IsInt64() {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d * %d / %d", a, b, c)
	}
	return res.Int64(), nil
}

// Mul returns a * b or ErrOverflow.
func Mul(a, b int64) (int64, error) {
	return MulDiv(a, b, 1)
}

// Add returns a + b or ErrOverflow.
func Add(a, b int64) (int64, error) {
	s := a + b
	if (s > a) != (b > 0) {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d + %d", a, b)
	}
	return s, nil
}
