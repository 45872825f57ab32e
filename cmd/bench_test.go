package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AdityaSkhorne/SU2/config"
)

func TestRunBench(t *testing.T) {
	base := func() *config.Parameters {
		ip := config.DefaultParameters()
		ip.NX, ip.NY = 8, 6
		ip.StretchRatio = 1.5
		ip.Partitions = 2
		ip.BlockSize = 2
		ip.Applications = 3
		return ip
	}
	for _, precond := range []string{"JACOBI", "ILU", "LINELET", "LU_SGS"} {
		ip := base()
		ip.Preconditioner = precond
		assert.Nil(t, ip.Validate())
		assert.NotPanics(t, func() { RunBench(ip) })
	}
	// Line mesh path with blas kernels
	{
		ip := base()
		ip.NY = 1
		ip.Partitions = 1
		ip.BLASKernels = true
		assert.NotPanics(t, func() { RunBench(ip) })
	}
}
