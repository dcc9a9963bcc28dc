package demand

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// EligibleBrokers resolves which brokers may fill a (location, date, shift)
// slot. A broker is eligible iff:
//
//  1. the weekday is in the broker's globally available weekdays,
//  2. the broker's global per-weekday-shift map (when present) includes the
//     shift — a location-level override can never re-admit a shift the
//     global settings exclude,
//  3. the location link's override (when present) includes the shift,
//     falling back to the link's legacy morning/afternoon flags.
//
// The result is sorted by broker ID so demand generation is deterministic.
func EligibleBrokers(
	loc *model.Location,
	weekday time.Weekday,
	shift model.Shift,
	brokers map[uuid.UUID]*model.Broker,
) []uuid.UUID {
	var eligible []uuid.UUID

	for _, link := range loc.Links {
		broker, ok := brokers[link.BrokerID]
		if !ok || !broker.Active {
			continue
		}
		if !broker.AvailableOn(weekday, shift) {
			continue
		}
		if !link.CoversShift(weekday, shift) {
			continue
		}
		eligible = append(eligible, broker.ID)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].String() < eligible[j].String()
	})

	return eligible
}
