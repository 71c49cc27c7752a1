package geometry

// QuadraticBezier evaluates the quadratic Bezier curve with control points
// p0, p1, p2 at parameter t in [0,1]. The curve starts at p0, ends at p2,
// and is pulled toward (but does not pass through) p1.
func QuadraticBezier(p0, p1, p2 Vec3, t float64) Vec3 {
	u := 1 - t
	return p0.Scale(u * u).
		Add(p1.Scale(2 * u * t)).
		Add(p2.Scale(t * t))
}

// QuadraticBezierTangent evaluates the derivative of the quadratic Bezier
// curve at parameter t. The result is not normalized.
func QuadraticBezierTangent(p0, p1, p2 Vec3, t float64) Vec3 {
	return p1.Sub(p0).Scale(2 * (1 - t)).
		Add(p2.Sub(p1).Scale(2 * t))
}

// CatmullRom evaluates the uniform Catmull-Rom segment between p1 and p2 at
// parameter t in [0,1]. p0 and p3 are the neighbouring control points that
// shape the tangents at the segment ends; the curve interpolates p1 and p2.
func CatmullRom(p0, p1, p2, p3 Vec3, t float64) Vec3 {
	t2 := t * t
	t3 := t2 * t
	// Standard uniform Catmull-Rom basis with tension 0.5.
	return p0.Scale(-0.5*t3 + t2 - 0.5*t).
		Add(p1.Scale(1.5*t3 - 2.5*t2 + 1)).
		Add(p2.Scale(-1.5*t3 + 2*t2 + 0.5*t)).
		Add(p3.Scale(0.5*t3 - 0.5*t2))
}

// CatmullRomTangent evaluates the derivative of the uniform Catmull-Rom
// segment between p1 and p2 at parameter t. The result is not normalized.
func CatmullRomTangent(p0, p1, p2, p3 Vec3, t float64) Vec3 {
	t2 := t * t
	return p0.Scale(-1.5*t2 + 2*t - 0.5).
		Add(p1.Scale(4.5*t2 - 5*t)).
		Add(p2.Scale(-4.5*t2 + 4*t + 0.5)).
		Add(p3.Scale(1.5*t2 - t))
}
