// Package version validates the API version date a client is built with and
// resolves the service contract epoch it selects.
package version

import (
	"strings"
	"time"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
)

// Historical version dates accepted by the service.
const (
	Date20161215 = "2016-12-15"
	Date20170427 = "2017-04-27"
	Date20170801 = "2017-08-01"
)

const dateLayout = "2006-01-02"

// Epoch is a dated snapshot of the service contract.
type Epoch int

const (
	EpochUnknown Epoch = iota
	Epoch20161215
	Epoch20170427
	Epoch20170801
)

// epochs is ordered oldest first.
var epochs = []struct {
	epoch Epoch
	date  string
}{
	{Epoch20161215, Date20161215},
	{Epoch20170427, Date20170427},
	{Epoch20170801, Date20170801},
}

func (e Epoch) String() string {
	for _, ep := range epochs {
		if ep.epoch == e {
			return ep.date
		}
	}
	return "unknown"
}

// Effective is the negotiated version: the caller's date, untouched, and the
// epoch it falls in.
type Effective struct {
	Date  string
	Epoch Epoch
}

// Negotiate validates date and resolves its epoch. An empty date is a
// configuration error. Dates between epochs resolve to the newest epoch not
// after them; dates that do not parse, or precede every epoch, resolve to
// EpochUnknown. The date itself is never rewritten.
func Negotiate(date string) (Effective, error) {
	if strings.TrimSpace(date) == "" {
		return Effective{}, errordefs.Configuration("version date is required; choose one explicitly, e.g. %s", Date20170801)
	}
	return Effective{Date: date, Epoch: resolve(date)}, nil
}

func resolve(date string) Epoch {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return EpochUnknown
	}
	found := EpochUnknown
	for _, ep := range epochs {
		start, _ := time.Parse(dateLayout, ep.date)
		if t.Before(start) {
			break
		}
		found = ep.epoch
	}
	return found
}

// Supported lists the historical version dates, oldest first.
func Supported() []string {
	out := make([]string, 0, len(epochs))
	for _, ep := range epochs {
		out = append(out, ep.date)
	}
	return out
}
