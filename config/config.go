package config

import (
	"fmt"
	"strings"

	"github.com/ghodss/yaml"
)

// PrecondType selects the preconditioner the matrix will be asked to build.
type PrecondType uint8

const (
	Jacobi PrecondType = iota
	ILU
	Linelet
	LUSGS
	Direct
)

func (p PrecondType) String() string {
	switch p {
	case Jacobi:
		return "JACOBI"
	case ILU:
		return "ILU"
	case Linelet:
		return "LINELET"
	case LUSGS:
		return "LU_SGS"
	case Direct:
		return "DIRECT"
	}
	return "UNKNOWN"
}

func ParsePrecond(name string) (PrecondType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "JACOBI", "":
		return Jacobi, nil
	case "ILU":
		return ILU, nil
	case "LINELET":
		return Linelet, nil
	case "LU_SGS", "LUSGS":
		return LUSGS, nil
	case "DIRECT", "PASTIX":
		return Direct, nil
	}
	return Jacobi, fmt.Errorf("unknown preconditioner %q", name)
}

// Parameters obtained from the YAML input file
type Parameters struct {
	Title           string  `yaml:"Title"`
	Preconditioner  string  `yaml:"Preconditioner"`  // JACOBI | ILU | LINELET | LU_SGS | DIRECT
	ILUFillIn       int     `yaml:"ILUFillIn"`       // extra fill levels beyond the mesh pattern
	DiscreteAdjoint bool    `yaml:"DiscreteAdjoint"` // transposed formulation active
	BLASKernels     bool    `yaml:"BLASKernels"`     // blas64 dense block kernels (float64 only)
	Partitions      int     `yaml:"Partitions"`
	NX              int     `yaml:"NX"` // demo mesh points in x
	NY              int     `yaml:"NY"` // demo mesh points in y, 1 selects a line mesh
	StretchRatio    float64 `yaml:"StretchRatio"`
	BlockSize       int     `yaml:"BlockSize"`
	Applications    int     `yaml:"Applications"` // preconditioner applications in the demo loop
}

func DefaultParameters() *Parameters {
	return &Parameters{
		Title:          "block-sparse demo",
		Preconditioner: "ILU",
		Partitions:     1,
		NX:             64,
		NY:             32,
		StretchRatio:   1.2,
		BlockSize:      1,
		Applications:   10,
	}
}

func (ip *Parameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	return ip.Validate()
}

func (ip *Parameters) Validate() error {
	if _, err := ParsePrecond(ip.Preconditioner); err != nil {
		return err
	}
	if ip.ILUFillIn < 0 {
		return fmt.Errorf("ILUFillIn must be >= 0, got %d", ip.ILUFillIn)
	}
	if ip.Partitions < 1 {
		return fmt.Errorf("Partitions must be >= 1, got %d", ip.Partitions)
	}
	if ip.BlockSize < 1 {
		return fmt.Errorf("BlockSize must be >= 1, got %d", ip.BlockSize)
	}
	return nil
}

// Precond returns the parsed preconditioner kind. Call Validate (or Parse)
// first; an unparseable name here is a configuration defect.
func (ip *Parameters) Precond() PrecondType {
	p, err := ParsePrecond(ip.Preconditioner)
	if err != nil {
		panic(err)
	}
	return p
}

func (ip *Parameters) ILUNeeded() bool {
	return ip.Precond() == ILU
}

func (ip *Parameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Preconditioner\n", ip.Precond())
	fmt.Printf("[%d]\t\t\t\t= ILU Fill-In\n", ip.ILUFillIn)
	fmt.Printf("%v\t\t\t= Discrete Adjoint\n", ip.DiscreteAdjoint)
	fmt.Printf("%v\t\t\t= BLAS Kernels\n", ip.BLASKernels)
	fmt.Printf("[%d]\t\t\t\t= Partitions\n", ip.Partitions)
	fmt.Printf("[%dx%d]\t\t\t= Demo Mesh\n", ip.NX, ip.NY)
	fmt.Printf("%8.5f\t\t= Stretch Ratio\n", ip.StretchRatio)
	fmt.Printf("[%d]\t\t\t\t= Block Size\n", ip.BlockSize)
}
