package linestats

// Snapshot is a point-in-time copy of a Store, detached from further
// accumulation. Keys lists every recorded LineKey in first-seen order.
type Snapshot struct {
	TickUnit float64
	Keys     []LineKey
	Stats    map[LineKey]LineStat
}

// TotalTicks returns the sum of tick totals over all entries.
func (sn *Snapshot) TotalTicks() uint64 {
	var total uint64
	for _, stat := range sn.Stats {
		total += stat.TotalTicks
	}

	return total
}

// Seconds converts a tick count to wall-time seconds using the snapshot's
// tick unit.
func (sn *Snapshot) Seconds(ticks uint64) float64 {
	return float64(ticks) * sn.TickUnit
}

// Equal reports whether two snapshots hold the same keys in the same order,
// the same stats, and the same tick unit.
func (sn *Snapshot) Equal(other *Snapshot) bool {
	if sn.TickUnit != other.TickUnit {
		return false
	}

	if len(sn.Keys) != len(other.Keys) {
		return false
	}

	for i, key := range sn.Keys {
		if other.Keys[i] != key {
			return false
		}

		if sn.Stats[key] != other.Stats[key] {
			return false
		}
	}

	return true
}
