package commands

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/flow"
	"github.com/iov-one/flowtree/x/strategy"
)

func parseID(raw string) ([]byte, error) {
	id, err := hex.DecodeString(raw)
	if err != nil || len(id) == 0 {
		return nil, errors.Wrapf(errors.ErrInput, "invalid hex ID %q", raw)
	}
	return id, nil
}

// parseAddress accepts any format known to flowtree.ParseAddress and
// rejects empty values.
func parseAddress(raw string) (flowtree.Address, error) {
	addr, err := flowtree.ParseAddress(raw)
	if err != nil {
		return nil, err
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	return addr, nil
}

func parseAmount(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(errors.ErrAmount, "invalid amount %q", raw)
	}
	return n, nil
}

// parseStrategy reads "single:<weight>:<address>" or "token_weighted".
func parseStrategy(raw string) (*flow.StrategyRef, error) {
	chunks := strings.SplitN(raw, ":", 3)
	switch chunks[0] {
	case strategy.SingleName:
		if len(chunks) != 3 {
			return nil, errors.Wrapf(errors.ErrInput, "want single:<weight>:<address>, got %q", raw)
		}
		weight, err := parseAmount(chunks[1])
		if err != nil {
			return nil, err
		}
		addr, err := parseAddress(chunks[2])
		if err != nil {
			return nil, err
		}
		return strategy.SingleRef(addr, weight)
	case strategy.TokenWeightedName:
		if len(chunks) != 1 {
			return nil, errors.Wrapf(errors.ErrInput, "%s takes no parameters", strategy.TokenWeightedName)
		}
		return &flow.StrategyRef{Name: strategy.TokenWeightedName}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInput, "unknown strategy %q", chunks[0])
	}
}

// parseShares reads "<recipient id>=<basis points>" pairs. Basis points
// can be given as a percentage.
func parseShares(raw []string) ([][]byte, []flowtree.BasisPoints, error) {
	ids := make([][]byte, 0, len(raw))
	bps := make([]flowtree.BasisPoints, 0, len(raw))
	for _, r := range raw {
		chunks := strings.SplitN(r, "=", 2)
		if len(chunks) != 2 {
			return nil, nil, errors.Wrapf(errors.ErrInput, "want <id>=<basis points>, got %q", r)
		}
		id, err := parseID(chunks[0])
		if err != nil {
			return nil, nil, err
		}
		bp, err := flowtree.ParseBasisPoints(chunks[1])
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		bps = append(bps, bp)
	}
	return ids, bps, nil
}
