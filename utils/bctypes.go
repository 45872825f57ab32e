package utils

import "strings"

// BCType classifies boundary markers. The linear solver core only inspects a
// few of these (the wall-type kinds seed linelet chains), the rest exist so
// mesh-supplied marker names survive a round trip through the config layer.
type BCType uint16

const (
	// BCNone indicates no boundary condition (interior face)
	BCNone BCType = iota

	// Flow boundary conditions
	BCInflow
	BCOutflow
	BCWall     // No-slip wall
	BCSlipWall // Slip/inviscid (Euler) wall
	BCSymmetry
	BCFarfield

	// Thermal boundary conditions
	BCIsothermal // Fixed temperature
	BCHeatFlux   // Prescribed heat flux

	// Structural
	BCDisplacement // Prescribed displacement

	// Mathematical boundary conditions
	BCDirichlet
	BCNeumann
)

// String returns the string representation of a BCType
func (bc BCType) String() string {
	names := map[BCType]string{
		BCNone:         "None",
		BCInflow:       "Inflow",
		BCOutflow:      "Outflow",
		BCWall:         "Wall",
		BCSlipWall:     "SlipWall",
		BCSymmetry:     "Symmetry",
		BCFarfield:     "Farfield",
		BCIsothermal:   "Isothermal",
		BCHeatFlux:     "HeatFlux",
		BCDisplacement: "Displacement",
		BCDirichlet:    "Dirichlet",
		BCNeumann:      "Neumann",
	}
	if name, ok := names[bc]; ok {
		return name
	}
	return "Unknown"
}

// BCNameMap maps common boundary condition names to BCType. Keys are
// lowercase for case-insensitive matching.
var BCNameMap = map[string]BCType{
	"inlet":         BCInflow,
	"inflow":        BCInflow,
	"outlet":        BCOutflow,
	"outflow":       BCOutflow,
	"wall":          BCWall,
	"no_slip":       BCWall,
	"noslip":        BCWall,
	"slip":          BCSlipWall,
	"slip_wall":     BCSlipWall,
	"inviscid_wall": BCSlipWall,
	"euler_wall":    BCSlipWall,
	"symmetry":      BCSymmetry,
	"farfield":      BCFarfield,
	"far_field":     BCFarfield,
	"isothermal":    BCIsothermal,
	"heat_flux":     BCHeatFlux,
	"displacement":  BCDisplacement,
	"dirichlet":     BCDirichlet,
	"neumann":       BCNeumann,
}

// ParseBCName converts a boundary condition name string to BCType.
// The matching is case-insensitive and trims whitespace.
func ParseBCName(name string) BCType {
	lowerName := strings.ToLower(strings.TrimSpace(name))
	if bcType, ok := BCNameMap[lowerName]; ok {
		return bcType
	}
	// Default to wall for unknown types
	return BCWall
}

// IsLineletSeed reports whether vertices on a marker of this kind start
// linelet chains. These are the strongly anisotropic wall-type boundaries.
func (bc BCType) IsLineletSeed() bool {
	switch bc {
	case BCHeatFlux, BCIsothermal, BCSlipWall, BCDisplacement:
		return true
	}
	return false
}
