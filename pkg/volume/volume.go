// Package volume provides the read-only volumetric scalar field interface
// consumed by the reformation resampler, a flat-buffer grid implementation,
// trilinear sampling in patient space, and a readiness contract for fields
// that become available asynchronously from the data layer.
package volume

import (
	"fmt"

	"taviplan/pkg/geometry"
)

// Field is a queryable, randomly addressable volumetric scalar field. It is
// shared and read-only: the engine never mutates it, and multiple resample
// requests may read it concurrently.
type Field interface {
	// Dims returns the voxel counts along x, y, z.
	Dims() (nx, ny, nz int)

	// Spacing returns the physical voxel size along each axis in mm.
	Spacing() (sx, sy, sz float64)

	// Origin returns the patient-space position of voxel (0,0,0).
	Origin() geometry.Vec3

	// At returns the scalar intensity at voxel (i,j,k). Indices must be
	// within bounds.
	At(i, j, k int) float64
}

// Grid is a Field backed by a contiguous row-major buffer, the same flat
// layout the rest of the engine uses for image data: index = (k*ny + j)*nx + i.
type Grid struct {
	data       []float64
	nx, ny, nz int
	spacing    [3]float64
	origin     geometry.Vec3
}

// NewGrid wraps the given buffer as a volume grid. The buffer length must
// equal nx*ny*nz and spacings must be positive.
func NewGrid(data []float64, nx, ny, nz int, spacing [3]float64, origin geometry.Vec3) (*Grid, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", nx, ny, nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("volume buffer has %d voxels, dimensions require %d", len(data), nx*ny*nz)
	}
	for _, s := range spacing {
		if s <= 0 {
			return nil, fmt.Errorf("voxel spacing must be positive, got %v", spacing)
		}
	}
	return &Grid{data: data, nx: nx, ny: ny, nz: nz, spacing: spacing, origin: origin}, nil
}

// Dims returns the voxel counts along x, y, z.
func (g *Grid) Dims() (int, int, int) { return g.nx, g.ny, g.nz }

// Spacing returns the physical voxel size along each axis in mm.
func (g *Grid) Spacing() (float64, float64, float64) {
	return g.spacing[0], g.spacing[1], g.spacing[2]
}

// Origin returns the patient-space position of voxel (0,0,0).
func (g *Grid) Origin() geometry.Vec3 { return g.origin }

// At returns the scalar intensity at voxel (i,j,k).
func (g *Grid) At(i, j, k int) float64 {
	return g.data[(k*g.ny+j)*g.nx+i]
}

// SampleTrilinear returns the trilinearly interpolated intensity of the
// field at the given patient-space position. The second return value is
// false when the position lies outside the field's bounds; the caller
// substitutes its outside sentinel in that case, never an extrapolation.
func SampleTrilinear(f Field, p geometry.Vec3) (float64, bool) {
	nx, ny, nz := f.Dims()
	sx, sy, sz := f.Spacing()
	o := f.Origin()

	// Continuous voxel coordinates.
	fx := (p.X - o.X) / sx
	fy := (p.Y - o.Y) / sy
	fz := (p.Z - o.Z) / sz

	if fx < 0 || fy < 0 || fz < 0 ||
		fx > float64(nx-1) || fy > float64(ny-1) || fz > float64(nz-1) {
		return 0, false
	}

	i0 := int(fx)
	j0 := int(fy)
	k0 := int(fz)
	i1 := min(i0+1, nx-1)
	j1 := min(j0+1, ny-1)
	k1 := min(k0+1, nz-1)

	dx := fx - float64(i0)
	dy := fy - float64(j0)
	dz := fz - float64(k0)

	c000 := f.At(i0, j0, k0)
	c100 := f.At(i1, j0, k0)
	c010 := f.At(i0, j1, k0)
	c110 := f.At(i1, j1, k0)
	c001 := f.At(i0, j0, k1)
	c101 := f.At(i1, j0, k1)
	c011 := f.At(i0, j1, k1)
	c111 := f.At(i1, j1, k1)

	c00 := c000*(1-dx) + c100*dx
	c10 := c010*(1-dx) + c110*dx
	c01 := c001*(1-dx) + c101*dx
	c11 := c011*(1-dx) + c111*dx

	c0 := c00*(1-dy) + c10*dy
	c1 := c01*(1-dy) + c11*dy

	return c0*(1-dz) + c1*dz, true
}
