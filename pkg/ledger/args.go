package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AmatanHead/points-game/pkg/game/types"
)

// IntArg converts a call argument to an int. Arguments that crossed a JSON
// boundary arrive as float64 or json.Number.
func IntArg(arg interface{}) (int, error) {
	switch v := arg.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("argument %v is not an integer", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %q is not an integer: %w", v, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("argument %q is not an integer: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument of type %T is not an integer", arg)
	}
}

// AddressArg converts a call argument to an address.
func AddressArg(arg interface{}) (types.Address, error) {
	switch v := arg.(type) {
	case types.Address:
		return types.ParseAddress(string(v)), nil
	case string:
		return types.ParseAddress(v), nil
	default:
		return "", fmt.Errorf("argument of type %T is not an address", arg)
	}
}
