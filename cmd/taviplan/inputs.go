package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"taviplan/internal/models"
	"taviplan/pkg/geometry"
	"taviplan/pkg/volume"
)

// landmarkFile is the YAML shape of a landmark list.
type landmarkFile struct {
	Landmarks []struct {
		X     float64 `yaml:"x"`
		Y     float64 `yaml:"y"`
		Z     float64 `yaml:"z"`
		Role  string  `yaml:"role"`
		Label string  `yaml:"label"`
	} `yaml:"landmarks"`
}

// loadLandmarks reads an ordered landmark list from a YAML file.
func loadLandmarks(path string) ([]models.LandmarkPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading landmark file: %w", err)
	}
	var file landmarkFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing landmark file: %w", err)
	}

	landmarks := make([]models.LandmarkPoint, len(file.Landmarks))
	for i, lm := range file.Landmarks {
		role := models.LandmarkRole(lm.Role)
		if role == "" {
			role = models.RoleGeneric
		}
		landmarks[i] = models.LandmarkPoint{
			Position: geometry.Vec3{X: lm.X, Y: lm.Y, Z: lm.Z},
			Role:     role,
			Label:    lm.Label,
		}
	}
	return landmarks, nil
}

// loadRawVolume reads a raw little-endian float32 voxel buffer and wraps it
// as a volume grid with the given dimensions, spacing, and origin.
func loadRawVolume(path, dims, spacing, origin string) (volume.Field, error) {
	nx, ny, nz, err := parseInts3(dims)
	if err != nil {
		return nil, fmt.Errorf("invalid dims: %w", err)
	}
	sx, sy, sz, err := parseFloats3(spacing)
	if err != nil {
		return nil, fmt.Errorf("invalid spacing: %w", err)
	}
	ox, oy, oz, err := parseFloats3(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening volume file: %w", err)
	}
	defer file.Close()

	voxels := make([]float32, nx*ny*nz)
	if err := binary.Read(file, binary.LittleEndian, voxels); err != nil {
		return nil, fmt.Errorf("error reading voxel data: %w", err)
	}

	data := make([]float64, len(voxels))
	for i, v := range voxels {
		data[i] = float64(v)
	}

	return volume.NewGrid(data, nx, ny, nz,
		[3]float64{sx, sy, sz},
		geometry.Vec3{X: ox, Y: oy, Z: oz})
}

// parseInts3 parses "a,b,c" into three ints.
func parseInts3(s string) (int, int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 comma-separated values, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, err
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// parseFloats3 parses "a,b,c" into three floats.
func parseFloats3(s string) (float64, float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 comma-separated values, got %q", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, err
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}
