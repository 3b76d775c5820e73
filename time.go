package flowtree

import (
	"encoding/json"
	"time"

	"github.com/iov-one/flowtree/errors"
)

// UnixTime is a point in time with seconds precision. Streams are settled
// per second so this is the only time representation stored in the state.
// Models declare it as a plain int64 field, which keeps the protobuf
// encoding a varint.
type UnixTime int64

// Time returns a time.Time structure that represents the same moment in time.
func (t UnixTime) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// IsZero returns true if this time represents a zero value.
func (t UnixTime) IsZero() bool {
	return t == 0
}

// Add modifies this UNIX time by given duration. This is compatible with
// time.Time.Add method.
func (t UnixTime) Add(d time.Duration) UnixTime {
	return t + UnixTime(d/time.Second)
}

// Elapsed returns the number of seconds that passed since the given time.
// Zero is returned if since is not before t, so that a clock that went back
// never produces a negative stream payment.
func (t UnixTime) Elapsed(since UnixTime) int64 {
	if since >= t {
		return 0
	}
	return int64(t - since)
}

// AsUnixTime converts given Time structure into its UNIX time representation.
func AsUnixTime(t time.Time) UnixTime {
	return UnixTime(t.Unix())
}

// BlockUnixTime returns the block time stored in the context as UnixTime.
// Missing block time is an error because every settlement depends on it.
func BlockUnixTime(ctx Context) (UnixTime, error) {
	t, ok := BlockTime(ctx)
	if !ok {
		return 0, errors.Wrap(errors.ErrHuman, "block time not present in the context")
	}
	return AsUnixTime(t), nil
}

// UnmarshalJSON supports unmarshaling both as time.Time and from a number.
// A number is the usual representation, a string is convinient in the
// genesis file.
func (t *UnixTime) UnmarshalJSON(raw []byte) error {
	var unix int64
	if err := json.Unmarshal(raw, &unix); err == nil {
		if unix < 0 {
			return errors.Wrap(errors.ErrInput, "time before epoch")
		}
		*t = UnixTime(unix)
		return nil
	}

	var stdtime time.Time
	if err := json.Unmarshal(raw, &stdtime); err == nil {
		unix := UnixTime(stdtime.Unix())
		if unix < 0 {
			return errors.Wrap(errors.ErrInput, "time before epoch")
		}
		*t = unix
		return nil
	}

	return errors.Wrap(errors.ErrInput, "invalid time format")
}

// Validate returns an error if this time value is invalid.
func (t UnixTime) Validate() error {
	if t < 0 {
		return errors.Wrap(errors.ErrState, "negative value")
	}
	return nil
}

// String returns the usual string representation of this time as the time.Time
// structure would.
func (t UnixTime) String() string {
	return t.Time().String()
}
