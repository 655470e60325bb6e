/*
knn.go - Nearest-neighbor classifier over historical punch times

PURPOSE:

	A small k-nearest-neighbors classifier mapping (employee, shift-date
	seconds, time-of-day seconds) feature vectors to punch types. Trained
	from historically classified Complete punches; queried per punch by
	the predictor engine.

	No machine-learning dependency is involved: the model is a plain
	sample table with brute-force distance search, which is ample for the
	bounded training set (most recent 1,000 punches).
*/
package predictor

import (
	"sort"

	"github.com/meridian/attendance-engine/attendance"
)

// sample is one labeled training observation.
type sample struct {
	features [3]float64
	label    attendance.PunchType
}

// knn is a k-nearest-neighbors model with majority voting.
type knn struct {
	k       int
	samples []sample
}

func newKNN(k int) *knn {
	return &knn{k: k}
}

// train replaces the model's samples.
func (m *knn) train(samples []sample) {
	m.samples = samples
}

func (m *knn) trained() bool {
	return len(m.samples) > 0
}

// predict returns the majority label among the k nearest samples and
// the fraction of those neighbors that agreed with it. Returns false
// when the model has no samples.
func (m *knn) predict(features [3]float64) (attendance.PunchType, float64, bool) {
	if len(m.samples) == 0 {
		return attendance.Unclassified, 0, false
	}

	type neighbor struct {
		dist  float64
		label attendance.PunchType
	}

	neighbors := make([]neighbor, len(m.samples))
	for i, s := range m.samples {
		neighbors[i] = neighbor{dist: squaredDistance(features, s.features), label: s.label}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })

	k := m.k
	if k > len(neighbors) {
		k = len(neighbors)
	}

	votes := make(map[attendance.PunchType]int)
	for _, n := range neighbors[:k] {
		votes[n.label]++
	}

	var winner attendance.PunchType
	best := 0
	for _, n := range neighbors[:k] {
		// Iterate neighbors rather than the map so ties resolve to the
		// nearest label deterministically.
		if votes[n.label] > best {
			best = votes[n.label]
			winner = n.label
		}
	}

	return winner, float64(best) / float64(k), true
}

func squaredDistance(a, b [3]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// featuresFor builds the feature vector for a punch: the employee id
// hashed to a numeric bucket, the shift date reduced to seconds-of-day
// epoch remainder, and the punch time-of-day in seconds. The layout
// matches the training side exactly.
func featuresFor(employeeID attendance.EmployeeID, p *attendance.Punch) [3]float64 {
	return [3]float64{
		employeeFeature(employeeID),
		float64(p.ShiftDate.Unix() % 86400),
		secondsOfDay(p),
	}
}

func secondsOfDay(p *attendance.Punch) float64 {
	t := p.PunchTime
	return float64(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// employeeFeature reduces an employee id to a stable numeric value so
// distinct employees land far apart in feature space. FNV-1a keeps the
// mapping deterministic across runs.
func employeeFeature(id attendance.EmployeeID) float64 {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	// Scale into a range comparable to seconds-of-day so no single
	// feature dominates the distance metric.
	return float64(h % 86400)
}
