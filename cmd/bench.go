/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AdityaSkhorne/SU2/comms"
	"github.com/AdityaSkhorne/SU2/config"
	"github.com/AdityaSkhorne/SU2/geometry"
	"github.com/AdityaSkhorne/SU2/linalg"
)

// benchCmd assembles an anisotropic diffusion operator on a stretched box
// mesh, splits it across partitions and exercises the matrix products and
// the selected preconditioner.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Exercise the block-sparse core on a stretched model problem",
	Long: `
Assembles a block Jacobian with the anisotropic wall-normal stretching
typical of viscous CFD meshes, then benchmarks matrix-vector products and
preconditioner applications across the requested number of partitions.

su2 bench -p LINELET --partitions 4`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := config.DefaultParameters()
		if file := viper.ConfigFileUsed(); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			if err = ip.Parse(data); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
		}
		ip.Preconditioner = viper.GetString("preconditioner")
		ip.ILUFillIn = viper.GetInt("fill")
		ip.Partitions = viper.GetInt("partitions")
		ip.NX = viper.GetInt("nx")
		ip.NY = viper.GetInt("ny")
		ip.StretchRatio = viper.GetFloat64("stretch")
		ip.BlockSize = viper.GetInt("blockSize")
		ip.Applications = viper.GetInt("applications")
		ip.BLASKernels = viper.GetBool("blas")
		if err := ip.Validate(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		RunBench(ip)
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringP("preconditioner", "p", "ILU", "preconditioner: JACOBI | ILU | LINELET | LU_SGS")
	benchCmd.Flags().Int("fill", 0, "ILU fill-in level")
	benchCmd.Flags().Int("partitions", 1, "number of domain partitions")
	benchCmd.Flags().Int("nx", 64, "mesh points along the wall")
	benchCmd.Flags().Int("ny", 32, "mesh points normal to the wall")
	benchCmd.Flags().Float64("stretch", 1.2, "wall-normal stretch ratio")
	benchCmd.Flags().Int("blockSize", 1, "scalars per point block")
	benchCmd.Flags().Int("applications", 10, "preconditioner applications to time")
	benchCmd.Flags().Bool("blas", false, "use blas64 dense block kernels")
	for _, key := range []string{"preconditioner", "fill", "partitions", "nx", "ny",
		"stretch", "blockSize", "applications", "blas"} {
		if err := viper.BindPFlag(key, benchCmd.Flags().Lookup(key)); err != nil {
			panic(err)
		}
	}
}

type rankReport struct {
	applyTime  time.Duration
	resNorm    float64
	identity   float64
	meanPoints int
}

func RunBench(ip *config.Parameters) {
	ip.Print()

	var global *geometry.Graph
	if ip.NY <= 1 {
		global = geometry.NewLineMesh(ip.NX, nil, 0, false)
	} else {
		global = geometry.NewBoxMesh(ip.NX, ip.NY, ip.StretchRatio)
	}
	var (
		np      = ip.Partitions
		decomps = geometry.Decompose(global, np)
		world   = comms.NewWorld[float64](np)
		reports = make([]rankReport, np)
		wg      sync.WaitGroup
	)
	for rank := 0; rank < np; rank++ {
		d := decomps[rank]
		for m, nbr := range d.Neighbors {
			world.Rank(rank).SetNeighbor(nbr, d.SendPoints[m], d.RecvPoints[m])
		}
	}

	start := time.Now()
	for rank := 0; rank < np; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			reports[rank] = runRank(ip, decomps[rank], world.Rank(rank))
		}(rank)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var applySum time.Duration
	for _, r := range reports {
		applySum += r.applyTime
	}
	fmt.Printf("\nPartitions: %d, total wall time %v\n", np, elapsed)
	fmt.Printf("Mean apply time per partition: %v\n", applySum/time.Duration(np))
	fmt.Printf("Preconditioned residual norm: %.6e\n", reports[0].resNorm)
	fmt.Printf("Transpose identity error: %.3e\n", reports[0].identity)
	if ip.Precond() == config.Linelet {
		fmt.Printf("Mean linelet length: %d points\n", reports[0].meanPoints)
	}
}

func runRank(ip *config.Parameters, d *geometry.Decomposition, comm *comms.Partition[float64]) (rep rankReport) {
	var (
		mesh = d.Mesh
		nVar = ip.BlockSize
		A    linalg.Matrix[float64]
	)
	A.Initialize(mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, nVar, true, mesh, ip, comm)
	assembleDiffusion(&A, mesh)

	switch ip.Precond() {
	case config.Jacobi:
		A.BuildJacobiPreconditioner(ip.DiscreteAdjoint)
	case config.ILU:
		A.BuildILUPreconditioner(ip.DiscreteAdjoint)
	case config.Linelet:
		A.BuildJacobiPreconditioner(false)
		rep.meanPoints = A.BuildLineletPreconditioner(mesh)
	case config.LUSGS:
		// no build phase
	case config.Direct:
		A.BuildDirectPreconditioner(ip.DiscreteAdjoint)
	}

	var (
		b = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 1)
		z = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 0)
		r = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 0)
	)

	apply := func() {
		switch ip.Precond() {
		case config.Jacobi:
			A.ComputeJacobiPreconditioner(b, z)
		case config.ILU:
			A.ComputeILUPreconditioner(b, z)
		case config.Linelet:
			A.ComputeLineletPreconditioner(b, z)
		case config.LUSGS:
			A.ComputeLUSGSPreconditioner(b, z)
		case config.Direct:
			A.ComputeDirectPreconditioner(b, z)
		}
	}

	start := time.Now()
	for n := 0; n < ip.Applications; n++ {
		apply()
	}
	rep.applyTime = time.Since(start)

	// Residual of the preconditioned guess, reduced across partitions
	A.ComputeResidual(z, b, r)
	rep.resNorm = math.Sqrt(comm.World().AllreduceSum(float64(r.Dot(r))))

	// Transpose identity <A^T x, y> == <x, A y> as a cross-partition check
	var (
		x  = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 0)
		y  = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 0)
		tx = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 0)
		ay = linalg.NewVector[float64](mesh.NumPoints(), mesh.NumOwnedPoints(), nVar, 0)
	)
	for lp := 0; lp < mesh.NumPoints(); lp++ {
		gp := float64(d.GlobalIndex[lp])
		for v := 0; v < nVar; v++ {
			x.Block(lp)[v] = math.Sin(gp + float64(v))
			y.Block(lp)[v] = math.Cos(0.5*gp - float64(v))
		}
	}
	A.MatrixVectorProductTransposed(x, tx)
	A.MatrixVectorProduct(y, ay)
	lhs := comm.World().AllreduceSum(float64(tx.Dot(y)))
	rhs := comm.World().AllreduceSum(float64(x.Dot(ay)))
	rep.identity = math.Abs(lhs - rhs)
	return
}

// assembleDiffusion fills A with the finite-volume diffusion stencil of the
// mesh: off-diagonals -w_ij I and diagonals (1 + sum w_ij) I, with w the
// same face-based anisotropy weight the linelet discovery uses.
func assembleDiffusion(A *linalg.Matrix[float64], mesh geometry.MeshGraph) {
	var (
		nVar = A.NVar
		off  = make([]float64, nVar*nVar)
	)
	for i := 0; i < mesh.NumOwnedPoints(); i++ {
		diag := 0.0
		for _, j := range mesh.Neighbors(i) {
			w := 0.5 * mesh.FaceArea(i, j) * (1.0/mesh.Volume(i) + 1.0/mesh.Volume(j))
			for v := 0; v < nVar; v++ {
				for u := 0; u < nVar; u++ {
					off[v*nVar+u] = 0
				}
				off[v*nVar+v] = -w
			}
			A.SetBlock(i, j, off)
			diag += w
		}
		for v := 0; v < nVar; v++ {
			for u := 0; u < nVar; u++ {
				off[v*nVar+u] = 0
			}
			off[v*nVar+v] = diag
		}
		A.SetBlock(i, i, off)
		A.AddVal2Diag(i, 1.0)
	}
}
