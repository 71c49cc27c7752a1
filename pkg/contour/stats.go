// Package contour derives the clinically reported geometry of a closed
// measurement contour: area, perimeter, long/short axis, and the
// equal-area and equal-perimeter circle diameters used for valve sizing.
package contour

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"taviplan/internal/models"
	"taviplan/pkg/geometry"
)

// InsufficientPointsError reports a contour with too few points to analyze.
type InsufficientPointsError struct {
	// Got is the number of contour points supplied; at least 3 are
	// required.
	Got int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("contour analysis requires at least 3 points, got %d", e.Got)
}

// Analyze computes the measurement statistics of an ordered closed contour.
// The closing segment from the last point back to the first is implied.
func Analyze(points []geometry.Vec3) (*models.ContourMeasurement, error) {
	return AnalyzeWithPerimeter(points, 0)
}

// AnalyzeWithPerimeter is Analyze with an already-computed perimeter, which
// callers pass when the annotation layer has measured the drawn curve at
// higher resolution than the stored contour points. A non-positive value
// computes the perimeter from the points.
func AnalyzeWithPerimeter(points []geometry.Vec3, perimeter float64) (*models.ContourMeasurement, error) {
	if len(points) < 3 {
		return nil, &InsufficientPointsError{Got: len(points)}
	}

	m := &models.ContourMeasurement{Points: points}

	if perimeter > 0 {
		m.Perimeter = perimeter
	} else {
		m.Perimeter = closedPerimeter(points)
	}
	m.PerimeterDerivedDiameter = m.Perimeter / math.Pi

	m.Area = planarArea(points)
	m.AreaDerivedDiameter = 2 * math.Sqrt(m.Area/math.Pi)

	longAxis(m)
	shortAxis(m)

	return m, nil
}

// closedPerimeter sums the segment lengths of the closed loop.
func closedPerimeter(points []geometry.Vec3) float64 {
	lengths := make([]float64, len(points))
	for i, p := range points {
		next := points[(i+1)%len(points)]
		lengths[i] = p.DistanceTo(next)
	}
	return floats.Sum(lengths)
}

// planarArea measures the contour area in its best-fit plane. The plane
// normal is the smallest-eigenvalue eigenvector of the point covariance;
// the contour is projected into the plane and measured with the shoelace
// formula. Measurement contours are drawn on a flat reformation slice, so
// the projection loses nothing for real input and keeps slightly
// non-planar hand-drawn contours well defined.
func planarArea(points []geometry.Vec3) float64 {
	n := float64(len(points))

	var centroid geometry.Vec3
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / n)

	var cov [3][3]float64
	for _, p := range points {
		d := p.Sub(centroid)
		v := [3]float64{d.X, d.Y, d.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				cov[r][c] += v[r] * v[c]
			}
		}
	}

	sym := mat.NewSymDense(3, []float64{
		cov[0][0], cov[0][1], cov[0][2],
		cov[0][1], cov[1][1], cov[1][2],
		cov[0][2], cov[1][2], cov[2][2],
	})

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return 0
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues are ascending: columns 2 and 1 span the plane.
	e1 := geometry.Vec3{X: vecs.At(0, 2), Y: vecs.At(1, 2), Z: vecs.At(2, 2)}
	e2 := geometry.Vec3{X: vecs.At(0, 1), Y: vecs.At(1, 1), Z: vecs.At(2, 1)}

	area := 0.0
	for i, p := range points {
		next := points[(i+1)%len(points)]
		d1 := p.Sub(centroid)
		d2 := next.Sub(centroid)
		x1, y1 := d1.Dot(e1), d1.Dot(e2)
		x2, y2 := d2.Dot(e1), d2.Dot(e2)
		area += x1*y2 - x2*y1
	}
	return math.Abs(area) / 2
}

// longAxis finds the point pair with globally maximum distance by
// exhaustive pairwise comparison. Contours carry tens to low hundreds of
// points, so the quadratic scan is cheaper than anything smarter.
func longAxis(m *models.ContourMeasurement) {
	points := m.Points
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if d := points[i].DistanceTo(points[j]); d > m.LongAxisLength {
				m.LongAxisLength = d
				m.LongAxis = [2]geometry.Vec3{points[i], points[j]}
			}
		}
	}
}

// shortAxis classifies each point to one side of the long axis by a
// cross-product side indicator and tracks the point of maximum
// perpendicular distance independently per side. The short axis joins the
// two per-side maxima; its length is the span across the long axis (the
// sum of both maximum distances), so an asymmetric shape is not reported
// as twice its larger half.
func shortAxis(m *models.ContourMeasurement) {
	a := m.LongAxis[0]
	dir := m.LongAxis[1].Sub(a)
	if dir.Norm() == 0 {
		return
	}
	dir = dir.Normalize()

	// Side reference: any direction normal to the axis within the
	// contour's spread.
	var ref geometry.Vec3
	for _, p := range m.Points {
		d := p.Sub(a)
		perp := d.Sub(dir.Scale(d.Dot(dir)))
		if perp.Norm() > 1e-9 {
			ref = dir.Cross(perp).Normalize()
			break
		}
	}
	if ref.Norm() == 0 {
		return // collinear contour
	}

	var (
		posDist, negDist float64
		posPt, negPt     geometry.Vec3
		posSet, negSet   bool
	)
	for _, p := range m.Points {
		d := p.Sub(a)
		perp := d.Sub(dir.Scale(d.Dot(dir)))
		dist := perp.Norm()
		if dist < 1e-12 {
			continue
		}
		side := dir.Cross(perp).Dot(ref)
		if side >= 0 {
			if !posSet || dist > posDist {
				posDist = dist
				posPt = p
				posSet = true
			}
		} else {
			if !negSet || dist > negDist {
				negDist = dist
				negPt = p
				negSet = true
			}
		}
	}

	switch {
	case posSet && negSet:
		m.ShortAxis = [2]geometry.Vec3{posPt, negPt}
		m.ShortAxisLength = posDist + negDist
	case posSet:
		m.ShortAxis = [2]geometry.Vec3{posPt, posPt}
		m.ShortAxisLength = posDist
	case negSet:
		m.ShortAxis = [2]geometry.Vec3{negPt, negPt}
		m.ShortAxisLength = negDist
	}
}
