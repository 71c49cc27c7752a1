package centerline

import (
	"sort"

	"taviplan/internal/models"
	"taviplan/pkg/geometry"
)

// PointAt returns the patient-space position at the given arc-length
// distance from the start of the path, interpolating linearly between the
// bracketing samples. Arc lengths outside [0, Length] clamp to the path
// endpoints.
func PointAt(path *models.CenterlinePath, arc float64) geometry.Vec3 {
	n := len(path.Samples)
	if n == 0 {
		return geometry.Vec3{}
	}
	if arc <= 0 {
		return path.Samples[0].Position
	}
	if arc >= path.Length() {
		return path.Samples[n-1].Position
	}

	// First sample with ArcLength >= arc; its predecessor brackets arc.
	i := sort.Search(n, func(k int) bool {
		return path.Samples[k].ArcLength >= arc
	})
	if i == 0 {
		return path.Samples[0].Position
	}
	a := path.Samples[i-1]
	b := path.Samples[i]
	span := b.ArcLength - a.ArcLength
	if span <= 0 {
		return a.Position
	}
	return geometry.Lerp(a.Position, b.Position, (arc-a.ArcLength)/span)
}

// NearestSampleIndex returns the index of the sample whose arc length is
// closest to the given distance.
func NearestSampleIndex(path *models.CenterlinePath, arc float64) int {
	n := len(path.Samples)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(k int) bool {
		return path.Samples[k].ArcLength >= arc
	})
	if i == 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	if arc-path.Samples[i-1].ArcLength < path.Samples[i].ArcLength-arc {
		return i - 1
	}
	return i
}

// DatumArc returns the arc-length position of the annulus datum: the sample
// closest to the landmark with the valve-plane role. When no landmark
// carries that role the middle landmark is used, matching how planning
// paths are placed in practice (inflow, annulus, outflow).
func DatumArc(path *models.CenterlinePath, landmarks []models.LandmarkPoint) float64 {
	if len(path.Samples) == 0 || len(landmarks) == 0 {
		return 0
	}
	ref := landmarks[len(landmarks)/2].Position
	for _, lm := range landmarks {
		if lm.Role == models.RoleValvePlane {
			ref = lm.Position
			break
		}
	}

	best := 0
	bestDist := path.Samples[0].Position.DistanceTo(ref)
	for i, s := range path.Samples[1:] {
		if d := s.Position.DistanceTo(ref); d < bestDist {
			bestDist = d
			best = i + 1
		}
	}
	return path.Samples[best].ArcLength
}
